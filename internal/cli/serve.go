package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/survos/lingua/internal/sandbox"
	"github.com/survos/lingua/internal/webhook"
)

const shutdownTimeout = 5 * time.Second

// SandboxOptions holds flags for the sandbox command.
type SandboxOptions struct {
	*RootOptions
	Addr   string
	Delay  int
	Secret string
}

// NewSandboxCommand creates the sandbox command.
func NewSandboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SandboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory translation server for local testing",
		Long: `Serve an in-memory translation server that implements the batch,
pull, job and source routes. Texts are pseudo-translated as "[locale] text".
Queued batches complete after --delay pull requests.

Example:
  lingua sandbox --addr 127.0.0.1:8089 --delay 2
  lingua --server http://127.0.0.1:8089 sync --enqueue --poll 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(opts.Verbose, cmd.ErrOrStderr())
			srv := sandbox.New(
				sandbox.WithDelay(opts.Delay),
				sandbox.WithAPIKey(opts.Secret),
				sandbox.WithLogger(logger),
			)
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return serve(ctx, opts.Addr, srv.Handler(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", "127.0.0.1:8089", "listen address")
	f.IntVar(&opts.Delay, "delay", 0, "pull requests a queued batch waits before completing")
	f.StringVar(&opts.Secret, "require-key", "", "API key clients must send (empty = open)")

	return cmd
}

// WebhookOptions holds flags for the webhook command.
type WebhookOptions struct {
	*RootOptions
	Addr string
}

// NewWebhookCommand creates the webhook command.
func NewWebhookCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WebhookOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Receive translation results pushed back by the server",
		Long: `Listen for translation results the server posts back and apply them
to local storage, so queued work lands without polling.

Requests must carry the configured webhook key in X-Api-Key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts.RootOptions, needs{store: true}, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.WebhookKey == "" {
				a.logger.Warn("webhook key not configured, accepting unauthenticated requests")
			}
			rc := webhook.New(a.store, a.cfg.WebhookKey, a.logger)

			ctx, cancel := signalContext(cmd)
			defer cancel()
			return serve(ctx, opts.Addr, rc.Handler(), a.logger)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8090", "listen address")

	return cmd
}

// serve runs handler on addr until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("server error", "addr", addr, "error", err)
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
