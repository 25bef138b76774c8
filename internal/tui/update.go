package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/docentlabs/docent/internal/orchestrator"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.Width = msg.Width
		m.markdown.UpdateWidth(msg.Width)

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseMsg:
		// Forward mouse events to the viewport for wheel scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to animate the thinking indicator
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case replyMsg:
		m.state = StateInput
		m.cancelSend()
		m.threadID = msg.threadID

		m.addMessage(Message{
			Role:  roleAssistant,
			Text:  msg.message.Content,
			Tools: msg.message.ToolsUsed,
		})
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after the reply lands
		return m, m.input.Focus()

	case errMsg:
		m.state = StateInput
		m.cancelSend()

		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		case errors.Is(msg.err, orchestrator.ErrRunTimeout):
			m.addMessage(Message{Role: roleError, Text: "The agent did not reply in time. Try again or ask something simpler."})
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.addMessage(Message{Role: roleError, Text: "Request timeout (>5 min). Try again."})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after error
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
