package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docentlabs/docent/internal/agents"
	"github.com/docentlabs/docent/internal/chat"
	"github.com/docentlabs/docent/internal/markdown"
	"github.com/docentlabs/docent/internal/orchestrator"
)

// maxMessageBytes caps the request body for POST .../messages. Far beyond
// any reasonable chat turn; the remote service has its own limits on top.
const maxMessageBytes = 64 * 1024

// Orchestrator is the slice of the conversation orchestrator the handlers
// depend on. The concrete type lives in internal/orchestrator; tests
// substitute a fake.
type Orchestrator interface {
	CreateThread(ctx context.Context) (orchestrator.ThreadInfo, error)
	Threads() []orchestrator.ThreadInfo
	SendMessage(ctx context.Context, threadID, text string) (chat.Message, error)
	History(ctx context.Context, threadID string) ([]chat.Message, error)
	DeleteThread(ctx context.Context, threadID string)
	Agent() *agents.Agent
}

// threadHandler holds dependencies for thread API endpoints.
type threadHandler struct {
	orc    Orchestrator
	logger *slog.Logger
}

// threadItem is the JSON representation of a thread.
type threadItem struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// messageItem is the JSON representation of a message. ContentHTML carries
// the sanitized Markdown rendering so the web UI can inject it directly.
type messageItem struct {
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	ContentHTML string   `json:"content_html"`
	CreatedAt   string   `json:"created_at"`
	Streaming   bool     `json:"streaming"`
	ToolsUsed   []string `json:"tools_used,omitempty"`
}

func toThreadItem(info orchestrator.ThreadInfo) threadItem {
	return threadItem{
		ID:        info.ID,
		CreatedAt: info.CreatedAt.Format(time.RFC3339),
	}
}

func toMessageItem(m chat.Message) messageItem {
	return messageItem{
		Role:        m.Role,
		Content:     m.Content,
		ContentHTML: markdown.Render(m.Content),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		Streaming:   m.Streaming,
		ToolsUsed:   m.ToolsUsed,
	}
}

// createThread handles POST /api/v1/threads — starts a new conversation.
func (h *threadHandler) createThread(w http.ResponseWriter, r *http.Request) {
	info, err := h.orc.CreateThread(r.Context())
	if err != nil {
		h.logger.Error("creating thread", "error", err)
		WriteError(w, http.StatusBadGateway, "upstream_failed", "failed to create thread", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, toThreadItem(info), h.logger)
}

// listThreads handles GET /api/v1/threads — returns the locally known
// threads, newest first.
func (h *threadHandler) listThreads(w http.ResponseWriter, _ *http.Request) {
	threads := h.orc.Threads()

	items := make([]threadItem, len(threads))
	for i, info := range threads {
		items[i] = toThreadItem(info)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}

// getMessages handles GET /api/v1/threads/{id}/messages — returns the full
// transcript so a reloaded page can restore the conversation.
func (h *threadHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	msgs, err := h.orc.History(r.Context(), id)
	if err != nil {
		h.writeUpstreamError(w, err, id)
		return
	}

	items := make([]messageItem, len(msgs))
	for i, m := range msgs {
		items[i] = toMessageItem(m)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	}, h.logger)
}

// sendMessageRequest is the request body for POST /api/v1/threads/{id}/messages.
type sendMessageRequest struct {
	Content string `json:"content"`
}

// sendMessage handles POST /api/v1/threads/{id}/messages — appends the user
// message, runs the agent over it and returns the reply. The response does
// not arrive until the remote run finishes, so this call can take as long as
// the configured run timeout.
func (h *threadHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		WriteError(w, http.StatusBadRequest, "missing_content", "content is required", h.logger)
		return
	}

	reply, err := h.orc.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		h.writeUpstreamError(w, err, id)
		return
	}

	WriteJSON(w, http.StatusOK, toMessageItem(reply), h.logger)
}

// deleteThread handles DELETE /api/v1/threads/{id} — forgets the thread.
// Always 204: the local entry is gone and remote deletion is best-effort.
func (h *threadHandler) deleteThread(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	h.orc.DeleteThread(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// threadID extracts the {id} path value, writing a 400 when it is missing.
func (h *threadHandler) threadID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "missing_id", "thread ID required", h.logger)
		return "", false
	}
	return id, true
}

// writeUpstreamError maps an orchestrator failure onto the wire: run
// timeouts to 504, a remote 404 for the thread to 404, everything else the
// remote service refuses or drops to 502.
func (h *threadHandler) writeUpstreamError(w http.ResponseWriter, err error, threadID string) {
	if errors.Is(err, orchestrator.ErrRunTimeout) {
		h.logger.Warn("run timed out", "thread_id", threadID, "error", err)
		WriteError(w, http.StatusGatewayTimeout, "run_timeout", "the agent did not reply before the run timeout", h.logger)
		return
	}

	var apiErr *agents.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		WriteError(w, http.StatusNotFound, "not_found", "thread not found", h.logger)
		return
	}

	h.logger.Error("agent service request failed", "error", err, "thread_id", threadID)
	WriteError(w, http.StatusBadGateway, "upstream_failed", "agent service request failed", h.logger)
}
