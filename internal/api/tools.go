package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/docentlabs/docent/internal/mcp"
)

// ToolLister is the slice of the MCP probe the tools endpoint depends on.
type ToolLister interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	Label() string
}

// toolsHandler holds dependencies for the tool catalog endpoint.
type toolsHandler struct {
	probe  ToolLister
	logger *slog.Logger
}

// toolItem is the JSON representation of a documentation tool.
type toolItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Allowed     bool   `json:"allowed"`
}

// listTools handles GET /api/v1/tools — returns the tool-server catalog.
// The catalog is advisory: when the probe is disabled or the server is
// unreachable the endpoint returns an empty list rather than an error,
// because the remote service executes tools regardless of what we can see.
func (h *toolsHandler) listTools(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		WriteJSON(w, http.StatusOK, map[string]any{
			"items": []toolItem{},
			"total": 0,
		}, h.logger)
		return
	}

	tools, err := h.probe.ListTools(r.Context())
	if err != nil {
		h.logger.Warn("listing documentation tools", "error", err, "server", h.probe.Label())
		WriteJSON(w, http.StatusOK, map[string]any{
			"items": []toolItem{},
			"total": 0,
		}, h.logger)
		return
	}

	items := make([]toolItem, len(tools))
	for i, tool := range tools {
		items[i] = toolItem{
			Name:        tool.Name,
			Description: tool.Description,
			Allowed:     tool.Allowed,
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  len(items),
		"server": h.probe.Label(),
	}, h.logger)
}
