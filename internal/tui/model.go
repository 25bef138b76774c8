// Package tui provides the Bubble Tea terminal interface for docent.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/docentlabs/docent/internal/orchestrator"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput    State = iota // Awaiting user input
	StateThinking              // Waiting for the agent's reply
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100 // Maximum messages stored
	maxHistory  = 100 // Maximum command history entries
)

// sendTimeout caps a single exchange. The orchestrator enforces the run
// timeout underneath; this is the hard stop for everything around it.
const sendTimeout = 5 * time.Minute

// Message role constants for consistent display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Message represents a conversation message for display.
type Message struct {
	Role  string // "user", "assistant", "system", "error"
	Text  string
	Tools []string // Tool names the agent invoked for this reply
}

// Model is the Bubble Tea model for the docent terminal interface.
type Model struct {
	// Input (textarea for multi-line support)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder // Reusable buffer for View() to reduce allocations
	messages []Message

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// In-flight exchange. SendMessage is synchronous, so there is exactly
	// one outstanding command at a time; sendCancel aborts it.
	sendCancel context.CancelFunc

	// Dependencies (direct, no interface)
	orc      *orchestrator.Orchestrator
	threadID string // Empty until the first exchange creates a thread
	ctx      context.Context
	ctxCancel context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// addMessage appends a message and enforces the maxMessages bound.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		// Remove oldest messages to stay within bounds
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// New creates a Model for chat interaction.
// Returns an error if required dependencies are nil.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, orc *orchestrator.Orchestrator) (*Model, error) {
	if orc == nil {
		return nil, errors.New("tui.New: orchestrator is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	// Create cancellable context for cleanup on exit
	ctx, cancel := context.WithCancel(ctx)

	ta := textarea.New()
	ta.Placeholder = "Ask about the documentation..."
	ta.Prompt = ""
	ta.SetHeight(1)  // Single line by default
	ta.SetWidth(120) // Wide enough for long text, updated on WindowSizeMsg
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	// Clean, minimal styling: no background colors, just text
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ta.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Create viewport for scrollable message history.
	// Disable built-in keyboard handling — we route keys explicitly
	// in handleKey to avoid conflicts with textarea/history navigation.
	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true
	vp.KeyMap = viewport.KeyMap{} // Disable default key bindings

	h := help.New()

	return &Model{
		orc:       orc,
		ctx:       ctx,
		ctxCancel: cancel,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      h,
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		markdown:  newMarkdownRenderer(80),
		width:     80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(), // Ensure textarea is focused on startup
	)
}
