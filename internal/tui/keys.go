package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Slash command constants.
const (
	cmdHelp  = "/help"
	cmdNew   = "/new"
	cmdClear = "/clear"
	cmdExit  = "/exit"
	cmdQuit  = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscCancel  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("ctrl+j"), key.WithHelp("ctrl+j", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscCancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// isNewlineShortcut reports whether the key inserts a newline instead of
// submitting. Shift+Enter only reaches us on terminals that report it, so
// Ctrl+J is the portable binding shown in help.
func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "ctrl+j", "alt+enter":
		return true
	}
	return false
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isNewlineShortcut(msg) {
		m.input.InsertString("\n")
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m.handleCtrlC()

	case "ctrl+d":
		return m, m.cleanup()

	case "enter":
		if m.state == StateInput {
			return m.handleSubmit()
		}
		return m, nil

	case "up":
		// Up at first line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case "down":
		// Down at last line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case "esc":
		if m.state == StateThinking {
			m.cancelSend()
			m.state = StateInput
			return m, nil
		}

	case "pgup":
		m.viewport.ViewUp()
		return m, nil

	case "pgdown":
		m.viewport.ViewDown()
		return m, nil
	}

	// Pass keys to the textarea for typing. Always allow typing so the
	// next message can be prepared while the agent is thinking.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		return m, m.cleanup()
	}
	m.lastCtrlC = now

	switch m.state {
	case StateInput:
		m.input.Reset()
		return m, nil

	case StateThinking:
		m.cancelSend()
		m.state = StateInput
		m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		m.rebuildViewportContent()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	// Handle slash commands
	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	// Add to history (enforce maxHistory cap)
	m.history = append(m.history, query)
	if len(m.history) > maxHistory {
		// Remove oldest entries to stay within bounds
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	// Add user message
	m.addMessage(Message{Role: roleUser, Text: query})

	// Clear input
	m.input.Reset()

	// Start the exchange
	m.state = StateThinking
	m.rebuildViewportContent()
	m.viewport.GotoBottom()

	ctx, cancel := context.WithTimeout(m.ctx, sendTimeout)
	m.sendCancel = cancel

	return m, tea.Batch(
		m.spinner.Tick,
		m.sendCmd(ctx, m.threadID, query),
	)
}

func (m *Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case cmdHelp:
		m.addMessage(Message{
			Role: roleSystem,
			Text: "Commands: " + cmdHelp + ", " + cmdNew + ", " + cmdClear + ", " + cmdExit + "\nShortcuts:\n  Enter: send message\n  Ctrl+J: new line\n  Ctrl+C: cancel/clear\n  Ctrl+D: exit\n  Up/Down: history\n  PgUp/PgDn: scroll",
		})
	case cmdNew:
		// Drop the thread handle; the next message starts a fresh one
		m.threadID = ""
		m.messages = nil
		m.addMessage(Message{Role: roleSystem, Text: "(New conversation)"})
	case cmdClear:
		m.messages = nil
	case cmdExit, cmdQuit:
		return m, m.cleanup()
	default:
		m.addMessage(Message{
			Role: roleError,
			Text: "Unknown command: " + cmd,
		})
	}
	m.input.Reset()
	m.rebuildViewportContent()
	return m, nil
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta

	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		// Move cursor to end of text
		m.input.CursorEnd()
	}

	return m, nil
}

// cancelSend aborts the in-flight exchange, if any.
func (m *Model) cancelSend() {
	if m.sendCancel != nil {
		m.sendCancel()
		m.sendCancel = nil
	}
}

// cleanup cancels any in-flight exchange and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	// Cancel the main context first; the send command observes it
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}

	m.cancelSend()

	return tea.Quit
}
