package tor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor manages an embedded Tor daemon using tornago, so a crawl can
// be routed through Tor without an external installation.
//
// Design decision: We use tornago's embedded Tor functionality because:
//  1. No external Tor daemon has to be installed or configured
//  2. The daemon's lifetime is tied to the crawl that needs it
//  3. The crawl only sees a socks5h proxy URL, like any other proxy
//
// Note: Starting the daemon takes one to three minutes while it needs to:
//   - Download directory information from the Tor network
//   - Build initial circuits through the relay network
//   - Open its SOCKS and control port listeners
type EmbeddedTor struct {
	// process is the running Tor daemon, nil before Start and after Stop.
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 listener address, set after a successful start.
	socksAddr string

	// controlAddr is the control port address, set after a successful start.
	controlAddr string

	// startupTimeout bounds how long Start waits for bootstrap.
	startupTimeout time.Duration

	// logger receives daemon lifecycle messages.
	logger *slog.Logger
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// WithLogger sets the logger used for daemon lifecycle messages.
func WithLogger(logger *slog.Logger) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start to launch the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the embedded Tor daemon and waits for it to bootstrap.
// If ctx is cancelled while the daemon starts, it is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	// ":0" lets the OS pick free ports.
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	e.logger.Info("starting embedded Tor daemon", slog.Duration("timeout", e.startupTimeout))

	// Blocks until Tor is bootstrapped or the startup timeout passes.
	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return ctx.Err()
	default:
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()

	e.logger.Info("embedded Tor daemon ready", slog.String("socks", e.socksAddr))
	return nil
}

// Stop shuts down the daemon. It is safe to call more than once and on an
// instance that was never started.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}

	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the "host:port" SOCKS5 address of the running daemon,
// or "" when it is not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// ControlAddr returns the control port address, or "" when not running.
func (e *EmbeddedTor) ControlAddr() string {
	return e.controlAddr
}

// IsRunning reports whether the daemon is running.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// ProxyURL returns the daemon's SOCKS5 proxy as a URL for fetch.Options.Proxy.
// The socks5h scheme makes Tor resolve hostnames, which .onion hosts need.
func (e *EmbeddedTor) ProxyURL() (string, error) {
	if e.socksAddr == "" {
		return "", ErrNotRunning
	}
	return "socks5h://" + e.socksAddr, nil
}
