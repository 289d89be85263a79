package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/client"
	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/sandbox"
	"github.com/survos/lingua/internal/store"
	"github.com/survos/lingua/internal/transport"
)

// app carries what a command needs once config has been resolved.
type app struct {
	cfg     *config.Config
	store   *store.Store
	client  *client.Client
	sandbox *sandbox.Server // set when requests are served in process
	logger  *slog.Logger
	out     *OutputFormatter
}

type needs struct {
	store  bool
	client bool
}

// openApp configures logging, loads config and opens what the command needs.
// override runs after the root flags so command flags win.
func openApp(cmd *cobra.Command, opts *RootOptions, need needs, override func(*config.Config)) (*app, error) {
	out := newFormatter(cmd, opts)
	logger := setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := config.Load(config.Options{
		File:    opts.ConfigFile,
		EnvFile: opts.EnvFile,
		Override: func(c *config.Config) {
			applyRootFlags(c, opts)
			if override != nil {
				override(c)
			}
		},
	})
	if err != nil {
		return nil, commandError(out, ErrCodeConfig, "load config", err)
	}
	logger.Debug("config loaded", "server", cfg.Server, "driver", cfg.Driver, "database", cfg.Database, "targets", cfg.Targets)

	a := &app{cfg: cfg, logger: logger, out: out}

	if need.store {
		st, err := store.OpenDriver(cfg.Driver, cfg.Database)
		if err != nil {
			return nil, commandError(out, ErrCodeStorage, "open database", err)
		}
		a.store = st
	}

	if need.client {
		var handler http.Handler
		if cfg.InProcess {
			a.sandbox = sandbox.New(sandbox.WithAPIKey(cfg.APIKey), sandbox.WithLogger(logger))
			handler = a.sandbox.Handler()
			logger.Info("serving requests in process")
		}
		tr := transport.New(transport.Options{
			BaseURL: cfg.Server,
			APIKey:  cfg.APIKey,
			Proxy:   cfg.Proxy,
			Timeout: cfg.Timeout,
		}, handler)
		a.client = client.New(tr, client.WithLogger(logger))
	}

	return a, nil
}

// Close releases the database.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func setupLogging(verbose bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func applyRootFlags(c *config.Config, opts *RootOptions) {
	if opts.Server != "" {
		c.Server = opts.Server
	}
	if opts.APIKey != "" {
		c.APIKey = opts.APIKey
	}
	if opts.Database != "" {
		c.Database = opts.Database
	}
	if opts.Driver != "" {
		c.Driver = opts.Driver
	}
	if opts.InProcess {
		c.InProcess = true
	}
}

// commandError reports a setup or usage failure (exit code 2).
func commandError(f *OutputFormatter, errCode, message string, err error) error {
	_ = f.Error(errCode, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, message, err)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// The command's context is used as parent when set (tests).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
