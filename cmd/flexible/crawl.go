package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/liujianglc/flexible/internal/api"
	"github.com/liujianglc/flexible/internal/config"
	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/database"
	"github.com/liujianglc/flexible/internal/fetch"
	"github.com/liujianglc/flexible/internal/log"
	"github.com/liujianglc/flexible/internal/metrics"
	"github.com/liujianglc/flexible/internal/middleware"
	"github.com/liujianglc/flexible/internal/queue"
	"github.com/liujianglc/flexible/internal/report"
	"github.com/liujianglc/flexible/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl web sites starting from the given URLs",
		Long: `Crawl fetches the given seed URLs and every page linked from them.

Links are followed only to whitelisted hosts: the hosts of the seeds, or
the hosts given with --domain. Only HTML pages are parsed for links.
The crawl ends when no URL is left in the queue, or on SIGINT/SIGTERM.

Examples:
  # Crawl a site
  flexible crawl https://example.com

  # Crawl two hosts slowly, skipping PDFs
  flexible crawl --interval 1s --ignore '*.pdf' https://example.com https://blog.example.com

  # Keep the queue on disk and resume it after an interruption
  flexible crawl --queue sqlite --resume https://example.com

  # Archive every page and expose the control API with metrics
  flexible crawl --record --listen 127.0.0.1:8080 https://example.com

  # Crawl an onion service through an embedded Tor daemon
  flexible crawl --tor http://<56 characters>.onion

  # Write a Markdown report
  flexible crawl --markdown -o report.md https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Scope
	cmd.Flags().StringSliceP("domain", "d", nil,
		"Hostname to crawl (repeatable, default: the hosts of the seeds)")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path glob never navigated to (repeatable, e.g. '/admin/*')")
	cmd.Flags().StringSlice("follow", nil,
		"URL path glob that navigation is restricted to (repeatable)")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Abort after this many documents (0 means no limit)")

	// Throttling
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of simultaneous fetches")
	cmd.Flags().Int("staging", config.DefaultStagingCeiling,
		"Maximum number of queue items waiting in the worker pool")
	cmd.Flags().Duration("interval", config.DefaultInterval,
		"Delay before each fetch")
	cmd.Flags().Float64("rate", 0,
		"Global request rate ceiling per second (0 disables it)")

	// Requests
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("encoding", "",
		"Character encoding of response bodies (e.g. shift_jis, or auto)")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http, https, socks5 or socks5h)")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Request header as "Key: Value" (repeatable)`)
	cmd.Flags().String("cookie", "",
		"Raw Cookie header sent with every request")
	cmd.Flags().String("user", "",
		"Username for HTTP basic authentication")
	cmd.Flags().String("password", "",
		"Password for HTTP basic authentication")
	cmd.Flags().String("bearer", "",
		"Token for bearer authentication")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Bool("no-follow-redirects", false,
		"Return redirect responses instead of following them")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Maximum number of redirects followed per request")
	cmd.Flags().Bool("no-cookies", false,
		"Do not keep cookies between requests")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Queue and storage
	cmd.Flags().String("queue", config.DefaultQueueBackend,
		"Queue backend: memory, sqlite or redis")
	cmd.Flags().String("redis-addr", "",
		"Redis server address (host:port) for --queue redis")
	cmd.Flags().String("redis-prefix", config.DefaultRedisPrefix,
		"Key prefix for --queue redis")
	cmd.Flags().String("db-dir", "",
		"Directory for the SQLite queue and page archive (default: XDG data directory)")
	cmd.Flags().Bool("resume", false,
		"Keep the queue of a previous crawl instead of starting fresh")
	cmd.Flags().Bool("record", false,
		"Archive every fetched page and the links between pages")
	cmd.Flags().Duration("skip-recent", 0,
		"With --record, leave pages archived less than this long ago untouched")

	// Control API
	cmd.Flags().String("listen", "",
		"Serve the control API and metrics on this address (e.g. 127.0.0.1:8080)")

	// Tor
	cmd.Flags().Bool("tor", false,
		"Route the crawl through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .flexible in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Domains, err = flags.GetStringSlice("domain"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}

	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.StagingCeiling, err = flags.GetInt("staging"); err != nil {
		return nil, err
	}
	if cfg.Interval, err = flags.GetDuration("interval"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Encoding, err = flags.GetString("encoding"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		key, value, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		cfg.Headers[key] = value
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}
	if cfg.Username, err = flags.GetString("user"); err != nil {
		return nil, err
	}
	if cfg.Password, err = flags.GetString("password"); err != nil {
		return nil, err
	}
	if cfg.BearerToken, err = flags.GetString("bearer"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	noFollow, err := flags.GetBool("no-follow-redirects")
	if err != nil {
		return nil, err
	}
	cfg.FollowRedirects = !noFollow
	if cfg.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.DisableCookies, err = flags.GetBool("no-cookies"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}

	if cfg.QueueBackend, err = flags.GetString("queue"); err != nil {
		return nil, err
	}
	if cfg.RedisAddr, err = flags.GetString("redis-addr"); err != nil {
		return nil, err
	}
	if cfg.RedisPrefix, err = flags.GetString("redis-prefix"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	if cfg.Resume, err = flags.GetBool("resume"); err != nil {
		return nil, err
	}
	if cfg.Record, err = flags.GetBool("record"); err != nil {
		return nil, err
	}
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return nil, err
	}

	if cfg.ListenAddr, err = flags.GetString("listen"); err != nil {
		return nil, err
	}
	if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.Seeds = args

	// An explicit config path that does not exist is an error; a missing
	// default config file is not.
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if configPath := config.FindConfigFile(cfg.ConfigFilePath); configPath != "" {
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	// Flags win over the file; with several hosts the first one that sets
	// a value wins.
	for _, host := range cfg.Whitelist() {
		cfg.ApplyHostConfig(host)
	}

	return cfg, nil
}

// parseHeader splits a "Key: Value" header flag.
func parseHeader(h string) (string, string, error) {
	key, value, ok := strings.Cut(h, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid header %q: expected \"Key: Value\"", h)
	}
	return key, strings.TrimSpace(value), nil
}

// runCrawl executes a crawl described by cfg and writes its report.
// Progress messages go to stderr and the report to stdout unless
// cfg.ReportFile is set.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	onion, err := tor.OnionSeeds(cfg.Seeds)
	if err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	if onion && !cfg.UseEmbeddedTor && !strings.HasPrefix(cfg.Proxy, "socks5h://") {
		return tor.ErrOnionNeedsProxy
	}

	if cfg.UseEmbeddedTor {
		embedded, err := startEmbeddedTor(ctx, cfg, stderr, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", slog.Any("error", err))
			}
		}()
		if cfg.Proxy, err = embedded.ProxyURL(); err != nil {
			return err
		}
	} else if err := checkProxy(ctx, cfg.Proxy, logger); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	fetcher, err := fetch.New(fetchOptions(cfg))
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	var pages *database.PageDB
	if cfg.Record {
		pages, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open page archive: %w", err)
		}
		defer pages.Close()
		logger.Info("page archive opened", slog.String("path", pages.Path()))
	}

	c, err := newCrawler(ctx, cfg, store, fetcher, pages, logger)
	if err != nil {
		return err
	}
	tracker := report.NewTracker(c, cfg.Seeds)

	fmt.Fprintf(stderr, "Crawling %s...\n", strings.Join(cfg.Seeds, ", "))
	crawlErr := crawlAndServe(ctx, cfg, c, store, pages, logger)

	// The crawl context may be cancelled already; the report still needs
	// the store.
	reportCtx := context.WithoutCancel(ctx)
	summary := tracker.Summary(reportCtx, store, summaryError(ctx, crawlErr))
	fmt.Fprintf(stderr, "Crawl finished in %s\n\n", summary.Duration.Round(time.Millisecond))

	if err := writeReport(cfg, summary, stdout); err != nil {
		logger.Error("report failed", slog.Any("error", err))
	}
	if pages != nil {
		if err := saveRun(reportCtx, pages, summary, logger); err != nil {
			logger.Error("failed to save crawl run", slog.Any("error", err))
		}
	}

	// An abort, from --max-pages or a signal, is a normal way to stop.
	if crawlErr != nil && !errors.Is(crawlErr, crawler.ErrAborted) {
		return crawlErr
	}
	return nil
}

// summaryError is the error recorded in the summary. An abort asked for by
// a middleware is not an error; one caused by ctx is.
func summaryError(ctx context.Context, err error) error {
	if errors.Is(err, crawler.ErrAborted) && ctx.Err() == nil {
		return nil
	}
	return err
}

// newCrawler creates the crawler and installs its middleware.
func newCrawler(ctx context.Context, cfg *config.Config, store queue.Store, fetcher fetch.Fetcher, pages *database.PageDB, logger *slog.Logger) (*crawler.Crawler, error) {
	opts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithStagingCeiling(cfg.StagingCeiling),
		crawler.WithInterval(cfg.Interval),
		crawler.WithRateLimit(cfg.RateLimit),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns...),
		crawler.WithFollowPatterns(cfg.FollowPatterns...),
		crawler.WithLogger(logger),
	}
	for _, seed := range cfg.Seeds {
		opts = append(opts, crawler.WithSeed(seed))
	}
	if len(cfg.Domains) > 0 {
		opts = append(opts, crawler.WithDomains(cfg.Domains...))
	}

	c, err := crawler.New(store, fetcher, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawler: %w", err)
	}

	mws := []crawler.Middleware{middleware.NewLogger(logger, slog.LevelInfo)}
	if cfg.MaxPages > 0 {
		mws = append(mws, middleware.NewMaxPages(cfg.MaxPages))
	}
	if pages != nil {
		recorder := middleware.NewRecorder(pages,
			middleware.WithSkipRecent(cfg.SkipRecent),
			middleware.WithRecorderLogger(logger))
		mws = append(mws, recorder)
		c.On(crawler.EventNavigated, recorder.LinkListener(ctx))
	}
	if err := c.Use(mws...); err != nil {
		return nil, fmt.Errorf("failed to install middleware: %w", err)
	}

	logger.Debug("crawler ready",
		slog.Any("whitelist", c.Whitelist()),
		slog.Any("middleware", c.Middleware()))
	return c, nil
}

// crawlAndServe runs the crawl. With a listen address it also serves the
// control API until the crawl ends; a server that fails to start aborts
// the crawl.
//
// Design decision: We run both under one errgroup because:
//  1. The server must stop as soon as the crawl completes
//  2. A listener error has to reach the caller instead of a log line
//  3. Shutdown of both is driven by the same signal context
func crawlAndServe(ctx context.Context, cfg *config.Config, c *crawler.Crawler, store queue.Store, pages *database.PageDB, logger *slog.Logger) error {
	if cfg.ListenAddr == "" {
		return c.Run(ctx)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.New(reg, c)

	opts := []api.Option{api.WithMetrics(reg), api.WithLogger(logger)}
	if counter, ok := store.(queue.Counter); ok {
		if err := metrics.RegisterQueue(reg, counter, logger); err != nil {
			return fmt.Errorf("failed to register queue metrics: %w", err)
		}
		opts = append(opts, api.WithQueue(counter))
	}
	if pages != nil {
		opts = append(opts, api.WithPages(pages))
	}
	server := api.NewServer(cfg.ListenAddr, c, opts...)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		return server.ListenAndServe(serveCtx)
	})
	g.Go(func() error {
		defer stopServer()
		return c.Run(gctx)
	})
	return g.Wait()
}

// fetchOptions maps the crawl configuration to fetcher options.
func fetchOptions(cfg *config.Config) fetch.Options {
	opts := fetch.DefaultOptions()
	opts.UserAgent = cfg.UserAgent
	opts.Headers = cfg.Headers
	opts.Encoding = cfg.Encoding
	opts.Proxy = cfg.Proxy
	opts.Timeout = cfg.Timeout
	opts.FollowRedirects = cfg.FollowRedirects
	opts.MaxRedirects = cfg.MaxRedirects
	opts.Auth = fetch.Auth{
		Username:    cfg.Username,
		Password:    cfg.Password,
		BearerToken: cfg.BearerToken,
	}
	opts.Pool = fetch.Pool{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	opts.DisableCookies = cfg.DisableCookies
	opts.Cookie = cfg.Cookie
	opts.MaxBodySize = cfg.MaxBodySize
	return opts
}

// openStore opens the queue backend selected by cfg. The returned func
// releases it.
//
// Design decision: A durable store is reset unless --resume is given, so a
// plain re-run crawls the site again instead of finding every URL already
// seen and completing at once.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Store, func(), error) {
	switch cfg.QueueBackend {
	case config.QueueSQLite:
		opts := queue.DefaultSQLiteOptions()
		opts.Fresh = !cfg.Resume
		store, err := queue.OpenSQLite(ctx, cfg.DBDir, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open queue database: %w", err)
		}
		logger.Info("queue opened",
			slog.String("backend", config.QueueSQLite),
			slog.String("path", store.Path()),
			slog.Bool("resume", cfg.Resume))
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close queue database", slog.Any("error", err))
			}
		}, nil

	case config.QueueRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", slog.Any("error", err))
			}
		}
		if err := client.Ping(ctx).Err(); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}

		store := queue.NewRedisStore(client, cfg.RedisPrefix)
		if cfg.Resume {
			n, err := store.Requeue(ctx)
			if err != nil {
				closeClient()
				return nil, nil, fmt.Errorf("failed to requeue active items: %w", err)
			}
			logger.Info("queue resumed", slog.String("backend", config.QueueRedis), slog.Int("requeued", n))
		} else if err := store.Reset(ctx); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("failed to reset redis queue: %w", err)
		}
		return store, closeClient, nil

	default:
		if cfg.Resume {
			logger.Warn("--resume has no effect with the memory queue")
		}
		return queue.NewMemoryStore(), func() {}, nil
	}
}

// checkProxy verifies a SOCKS5 proxy before the crawl depends on it.
// Other proxy schemes and an empty proxy are not checked.
func checkProxy(ctx context.Context, rawProxy string, logger *slog.Logger) error {
	if rawProxy == "" {
		return nil
	}
	u, err := url.Parse(rawProxy)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil
	}
	if err := tor.ValidateProxyAddress(u.Host); err != nil {
		return err
	}

	if status := tor.CheckProxy(ctx, u.Host); status != tor.ProxyStatusOK {
		return fmt.Errorf("proxy check failed: %w (make sure the proxy is running at %s)", status.Err(), u.Host)
	}
	logger.Info("SOCKS5 proxy verified", slog.String("address", u.Host))
	return nil
}

// startEmbeddedTor starts an embedded Tor daemon and verifies its proxy.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, stderr io.Writer, logger *slog.Logger) (*tor.EmbeddedTor, error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	if status := tor.CheckProxy(ctx, embedded.SocksAddr()); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	fmt.Fprintf(stderr, "SOCKS proxy: %s\n\n", embedded.SocksAddr())
	return embedded, nil
}

// writeReport writes the summary in the format selected by cfg.
func writeReport(cfg *config.Config, summary *report.Summary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Reports list URLs that may carry credentials or session IDs.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output, report.WithMaxFailures(50))
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(summary)
	return err
}

// saveRun stores the summary as a crawl run in the page archive.
func saveRun(ctx context.Context, pages *database.PageDB, summary *report.Summary, logger *slog.Logger) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}
	id, err := pages.SaveRun(ctx, &database.RunRecord{
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Seeds:      summary.Seeds,
		Summary:    data,
	})
	if err != nil {
		return err
	}
	logger.Info("crawl run saved", slog.Int64("id", id))
	return nil
}
