package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/liujianglc/flexible/internal/crawler"
)

// Logger logs each document and how long the rest of the chain took.
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogger creates a Logger writing at level.
func NewLogger(logger *slog.Logger, level slog.Level) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, level: level}
}

// Name implements crawler.Middleware.
func (l *Logger) Name() string { return "logger" }

// Handle implements crawler.Middleware.
func (l *Logger) Handle(ctx context.Context, env *crawler.Context, next crawler.Next) error {
	start := time.Now()
	err := next(ctx, env)

	attrs := []slog.Attr{
		slog.String("url", env.Result.Request.URL),
		slog.Int("status", env.Result.Response.StatusCode),
		slog.Int("bytes", len(env.Result.Body)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		l.logger.LogAttrs(ctx, slog.LevelWarn, "document rejected", attrs...)
		return err
	}
	l.logger.LogAttrs(ctx, l.level, "document", attrs...)
	return nil
}
