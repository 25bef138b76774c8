package app

import (
	"context"
	"time"

	"github.com/docentlabs/docent/internal/agents"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/mcp"
	"github.com/docentlabs/docent/internal/observability"
	"github.com/docentlabs/docent/internal/orchestrator"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup — call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	client, err := provideAgentsClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Client = client

	a.Orchestrator = orchestrator.New(client, cfg, logger)
	a.Probe = mcp.NewProbe(cfg, logger)

	return a, nil
}

// provideOtelShutdown starts OTLP trace export when enabled and returns its
// teardown. Disabled tracing and a failed exporter both yield a no-op, so
// callers never branch on observability state.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Otel.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without traces", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideAgentsClient creates the typed client for the remote agent service.
func provideAgentsClient(cfg *config.Config, logger log.Logger) (*agents.Client, error) {
	return agents.New(cfg.Endpoint, cfg.APIKey, logger)
}
