package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/docentlabs/docent/internal/chat"
)

// replyMsg carries the agent's reply back into the event loop. threadID is
// echoed so Update can adopt a thread created lazily by the command.
type replyMsg struct {
	threadID string
	message  chat.Message
}

// errMsg reports a failed exchange.
type errMsg struct {
	err error
}

// sendCmd creates a command that runs one synchronous exchange: create the
// thread if this is the first message, then send and wait for the reply.
// threadID is captured here, in the event loop, so the command goroutine
// never reads model state.
func (m *Model) sendCmd(ctx context.Context, threadID, text string) tea.Cmd {
	orc := m.orc
	return func() tea.Msg {
		if threadID == "" {
			info, err := orc.CreateThread(ctx)
			if err != nil {
				return errMsg{err: fmt.Errorf("creating thread: %w", err)}
			}
			threadID = info.ID
		}

		reply, err := orc.SendMessage(ctx, threadID, text)
		if err != nil {
			return errMsg{err: err}
		}

		return replyMsg{threadID: threadID, message: reply}
	}
}
