package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/docentlabs/docent/internal/app"
	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/log"
	"github.com/docentlabs/docent/internal/tui"
)

// runChat initializes and starts the interactive terminal chat.
func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, closeLog := chatLogger()
	defer closeLog()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		// Fresh context: ctx is canceled once the user interrupts the chat.
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		a.Close(closeCtx)
	}()

	return tui.Run(ctx, a.Orchestrator)
}

// chatLogger diverts chat-mode logs to ~/.docent/chat.log so they never draw
// over the terminal the interface owns. When the file cannot be opened the
// logs are dropped; the alternative is corrupting the screen.
func chatLogger() (log.Logger, func()) {
	discard := func() (log.Logger, func()) {
		return log.NewWithWriter(io.Discard, log.Config{}), func() {}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return discard()
	}

	path := filepath.Join(home, ".docent", "chat.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return discard()
	}

	logger := log.NewWithWriter(f, log.Config{Level: logLevel()})
	return logger, func() { _ = f.Close() }
}
