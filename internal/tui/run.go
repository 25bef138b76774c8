package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/docentlabs/docent/internal/orchestrator"
)

// Run starts the terminal chat and blocks until the user exits.
func Run(ctx context.Context, orc *orchestrator.Orchestrator) error {
	m, err := New(ctx, orc)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running chat interface: %w", err)
	}
	return nil
}
