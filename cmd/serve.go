package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docentlabs/docent/internal/api"
	"github.com/docentlabs/docent/internal/app"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/web"
)

// parseRateBurst reads DOCENT_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("DOCENT_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Server timeout configuration. The write timeout is computed at startup
// instead: a synchronous send holds its response open until the agent run
// finishes, so it must outlast the configured run timeout.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
	probeTimeout      = 15 * time.Second
	closeTimeout      = 10 * time.Second
)

// runServe initializes and starts the HTTP server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(true)
	logger.Info("starting HTTP server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		// Fresh context: ctx is already canceled when shutdown is signal-driven.
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		a.Close(closeCtx)
	}()

	checkToolServer(ctx, a, logger)

	webUI, err := web.NewServer(web.ServerConfig{
		Logger:  logger,
		Version: Version,
		IsDev:   isDev(),
	})
	if err != nil {
		return fmt.Errorf("creating web UI: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Orchestrator: a.Orchestrator,
		Probe:        a.Probe,
		WebUI:        webUI.Handler(),
		CORSOrigins:  cfg.CORSOrigins,
		IsDev:        isDev(),
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.Run.Timeout + 30*time.Second,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"web", "/",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// checkToolServer probes the documentation server in the background. A
// missing or misspelled allowed tool is worth a warning, not a failed start:
// the remote agent service executes tools either way.
func checkToolServer(ctx context.Context, a *app.App, logger log.Logger) {
	go func() {
		probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
		defer probeCancel()

		tools, err := a.Probe.ListTools(probeCtx)
		if err != nil {
			logger.Warn("tool server unreachable", "label", a.Probe.Label(), "error", err)
			return
		}
		logger.Info("tool server reachable", "label", a.Probe.Label(), "tool_count", len(tools))
		if missing := a.Probe.Missing(tools); len(missing) > 0 {
			logger.Warn("allowed tools missing from server catalog",
				"label", a.Probe.Label(), "missing", missing)
		}
	}()
}
