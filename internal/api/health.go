package api

import (
	"log/slog"
	"net/http"
)

// health is a simple health check endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can take traffic. The agent is created
// lazily on the first message, so its absence is not a failure — the handler
// only reports the current state and never triggers creation itself.
func readiness(orc Orchestrator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":        "ready",
			"agent_created": orc.Agent() != nil,
			"threads":       len(orc.Threads()),
		}, logger)
	}
}
