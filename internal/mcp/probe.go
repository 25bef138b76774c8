// Package mcp probes the documentation tool server over the Model Context
// Protocol. The agent service opens its own connection to the same server
// during runs; the probe exists so operators can verify the server is
// reachable and inspect its tool catalog without involving the agent.
package mcp

import (
	"context"
	"fmt"
	"slices"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
)

const (
	clientName    = "docent-probe"
	clientVersion = "1.0.0"
)

// Tool is one entry of the tool server's catalog, annotated with whether the
// agent is permitted to call it under the configured allow-list.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Allowed     bool   `json:"allowed"`
}

// Probe lists a tool server's catalog over MCP.
type Probe struct {
	label     string
	allowed   []string
	transport sdk.Transport
	logger    log.Logger
}

// NewProbe builds a probe for the configured tool server using the
// streamable HTTP transport.
func NewProbe(cfg *config.Config, logger log.Logger) *Probe {
	return &Probe{
		label:   cfg.ToolServer.Label,
		allowed: cfg.ToolServer.AllowedTools,
		transport: &sdk.StreamableClientTransport{
			Endpoint: cfg.ToolServer.URL,
		},
		logger: logger.With("component", "mcp"),
	}
}

// newProbeWithTransport is the test seam: in-memory transports plug in here.
func newProbeWithTransport(label string, allowed []string, transport sdk.Transport, logger log.Logger) *Probe {
	return &Probe{
		label:     label,
		allowed:   allowed,
		transport: transport,
		logger:    logger.With("component", "mcp"),
	}
}

// Label returns the configured server alias.
func (p *Probe) Label() string { return p.label }

// ListTools connects to the tool server, fetches its catalog and closes the
// session. Each call is an independent connection.
func (p *Probe) ListTools(ctx context.Context) ([]Tool, error) {
	client := sdk.NewClient(&sdk.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := client.Connect(ctx, p.transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool server: %w", err)
	}
	defer session.Close()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			Allowed:     p.ToolAllowed(t.Name),
		})
	}

	p.logger.Debug("tool server probed",
		"server_label", p.label,
		"tool_count", len(tools))
	return tools, nil
}

// ToolAllowed reports whether the configured allow-list permits the tool.
// An empty allow-list permits everything.
func (p *Probe) ToolAllowed(name string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	return slices.Contains(p.allowed, name)
}

// Missing returns the allow-list entries absent from the given catalog. A
// non-empty result usually means a typo in the configuration or a tool the
// server stopped exposing; callers log it and move on, since the allow-list
// is enforced by the agent service and an unknown entry is merely inert.
func (p *Probe) Missing(tools []Tool) []string {
	var missing []string
	for _, name := range p.allowed {
		if !slices.ContainsFunc(tools, func(t Tool) bool { return t.Name == name }) {
			missing = append(missing, name)
		}
	}
	return missing
}
