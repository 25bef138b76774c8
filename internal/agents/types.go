package agents

import (
	"encoding/json"
	"strings"
)

// RunStatus is the lifecycle state of a run as reported by the agent service.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run has stopped moving. A terminal run never
// transitions again, so pollers stop on it.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

// Message roles used by the thread transcript.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// RequiredAction types.
const ActionSubmitToolApproval = "submit_tool_approval"

// MCPToolDefinition attaches a remote MCP server to an agent at creation
// time. The service connects to the server itself; we only describe it.
type MCPToolDefinition struct {
	Type         string   `json:"type"` // always "mcp"
	ServerLabel  string   `json:"server_label"`
	ServerURL    string   `json:"server_url"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// NewMCPTool builds an MCP tool definition for the given server.
func NewMCPTool(label, url string, allowedTools []string) MCPToolDefinition {
	return MCPToolDefinition{
		Type:         "mcp",
		ServerLabel:  label,
		ServerURL:    url,
		AllowedTools: allowedTools,
	}
}

// Agent is the service-side agent definition.
type Agent struct {
	ID           string              `json:"id"`
	Object       string              `json:"object"`
	Name         string              `json:"name"`
	Model        string              `json:"model"`
	Instructions string              `json:"instructions"`
	Tools        []MCPToolDefinition `json:"tools,omitempty"`
	CreatedAt    int64               `json:"created_at"`
}

// CreateAgentRequest is the payload for POST /assistants.
type CreateAgentRequest struct {
	Model        string              `json:"model"`
	Name         string              `json:"name"`
	Instructions string              `json:"instructions"`
	Tools        []MCPToolDefinition `json:"tools,omitempty"`
}

// Thread is a server-side conversation container.
type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

// TextContent is the inner value of a text content part.
type TextContent struct {
	Value string `json:"value"`
}

// ContentPart is one element of a message body. Only text parts carry a
// payload we read; other part types are preserved but ignored.
type ContentPart struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

// Message is one entry in a thread transcript.
type Message struct {
	ID        string        `json:"id"`
	Object    string        `json:"object"`
	ThreadID  string        `json:"thread_id"`
	Role      string        `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt int64         `json:"created_at"`
}

// Text joins the message's text parts with newlines. Non-text parts are
// skipped. Empty when the message has no text content at all.
func (m Message) Text() string {
	var parts []string
	for _, p := range m.Content {
		if p.Type == "text" && p.Text != nil {
			parts = append(parts, p.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// CreateMessageRequest is the payload for POST /threads/{id}/messages.
type CreateMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ListMessagesOptions narrows a transcript listing. Zero values mean the
// service defaults (ascending, no limit).
type ListMessagesOptions struct {
	Order string // "asc" or "desc" by created_at
	Limit int
}

// MessageList is the envelope for GET /threads/{id}/messages.
type MessageList struct {
	Object  string    `json:"object"`
	Data    []Message `json:"data"`
	HasMore bool      `json:"has_more"`
}

// ToolCall is one tool invocation the service wants approved before it
// executes it against the MCP server.
type ToolCall struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Arguments   string `json:"arguments"`
	ServerLabel string `json:"server_label"`
}

// SubmitToolApprovalAction lists the calls awaiting approval.
type SubmitToolApprovalAction struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// RequiredAction tells the caller what a requires_action run is waiting for.
type RequiredAction struct {
	Type               string                    `json:"type"`
	SubmitToolApproval *SubmitToolApprovalAction `json:"submit_tool_approval,omitempty"`
}

// RunError is the service's failure detail on a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one agent execution over a thread.
type Run struct {
	ID             string          `json:"id"`
	Object         string          `json:"object"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
	CreatedAt      int64           `json:"created_at"`
}

// MCPToolResource carries per-run settings for one attached MCP server,
// keyed by its label. RequireApproval accepts the service's full grammar:
// the strings "never" and "always", or a JSON object with per-tool lists.
type MCPToolResource struct {
	ServerLabel     string            `json:"server_label"`
	RequireApproval json.RawMessage   `json:"require_approval,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// ToolResources groups per-run tool settings by tool type.
type ToolResources struct {
	MCP []MCPToolResource `json:"mcp,omitempty"`
}

// CreateRunRequest is the payload for POST /threads/{id}/runs.
type CreateRunRequest struct {
	AgentID       string         `json:"assistant_id"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// ApprovalSetting encodes a configured approval mode into the wire form the
// service expects: known modes and anything that is not already JSON become
// JSON strings, raw JSON objects pass through untouched.
func ApprovalSetting(mode string) json.RawMessage {
	trimmed := strings.TrimSpace(mode)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(mode)
	if err != nil {
		// Marshaling a string cannot fail; keep the compiler honest.
		return json.RawMessage(`"never"`)
	}
	return quoted
}

// ToolApproval is the verdict for one pending tool call.
type ToolApproval struct {
	ToolCallID string            `json:"tool_call_id"`
	Approve    bool              `json:"approve"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// SubmitToolApprovalsRequest is the payload for
// POST /threads/{tid}/runs/{rid}/submit_tool_outputs.
type SubmitToolApprovalsRequest struct {
	ToolApprovals []ToolApproval `json:"tool_approvals"`
}

// DeletionStatus is the service's acknowledgement of a DELETE.
type DeletionStatus struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
