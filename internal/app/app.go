// Package app assembles the application: it builds the agent service client,
// the orchestrator and the tool-server probe from configuration and owns
// their teardown. Commands call Setup once and defer Close.
package app

import (
	"context"

	"github.com/docentlabs/docent/internal/agents"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/mcp"
	"github.com/docentlabs/docent/internal/orchestrator"
)

// App is the application container. All fields are ready to use after Setup
// returns without error.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Client       *agents.Client
	Orchestrator *orchestrator.Orchestrator
	Probe        *mcp.Probe

	// Lifecycle
	otelCleanup func()
}

// Close releases everything Setup acquired, in reverse order. Safe to call
// on a partially initialized App and more than once.
func (a *App) Close(ctx context.Context) {
	// 1. Delete the service-side agent, if one was ever created.
	if a.Orchestrator != nil {
		a.Orchestrator.Close(ctx)
	}

	// 2. Flush and stop the tracer provider.
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
}
