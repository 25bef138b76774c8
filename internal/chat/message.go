// Package chat defines the conversation message value type exchanged between
// the orchestrator and the presentation layers (web API and terminal UI).
package chat

import "time"

// Message roles. These mirror the roles the remote agent service uses on
// thread messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn as shown to the user.
//
// Messages are immutable once constructed: the orchestrator builds one per
// user turn and one per produced reply, then hands ownership to the caller.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming is always false: replies arrive whole once the remote run
	// completes. The field stays on the wire contract so the UI does not
	// need a schema change if streaming lands later.
	Streaming bool `json:"streaming"`

	// ToolsUsed lists the names of the tools invoked while producing this
	// message, in the order the remote service presented them.
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// NewUserMessage builds a user-authored message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage builds an assistant reply stamped with the current time.
// toolsUsed may be nil when no tools were invoked.
func NewAssistantMessage(content string, toolsUsed []string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		ToolsUsed: toolsUsed,
	}
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// IsAssistant reports whether the message was authored by the agent.
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }

// IsSystem reports whether the message is a system message.
func (m Message) IsSystem() bool { return m.Role == RoleSystem }
