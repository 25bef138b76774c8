// Package cmd provides CLI commands for docent.
//
// Commands:
//   - serve: HTTP JSON API plus the embedded web chat page
//   - chat:  interactive terminal chat
//   - tools: print the documentation tool-server catalog
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docentlabs/docent/internal/log"
)

// Execute is the main entry point for the docent CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "chat":
		return runChat()
	case "tools":
		return runTools()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// logLevel reads the DEBUG environment variable; any value enables debug
// logging.
func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for command output.
func newLogger(json bool) log.Logger {
	return log.New(log.Config{Level: logLevel(), JSON: json})
}

// isDev reports whether the server runs in development mode: plain HTTP
// without HSTS, and a CSP relaxed for the dev asset pipeline.
func isDev() bool {
	return os.Getenv("DOCENT_DEV") != ""
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("docent - documentation assistant over a managed agent service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docent serve [addr]  Start the HTTP server with the web chat page (default: 127.0.0.1:8800)")
	fmt.Println("  docent chat          Start interactive terminal chat")
	fmt.Println("  docent tools         List the documentation tool-server catalog")
	fmt.Println("  docent --version     Show version information")
	fmt.Println("  docent --help        Show this help")
	fmt.Println()
	fmt.Println("Chat Commands (in interactive mode):")
	fmt.Println("  /help                Show available commands")
	fmt.Println("  /new                 Start a new conversation")
	fmt.Println("  /clear               Clear the screen")
	fmt.Println("  /exit, /quit         Exit docent")
	fmt.Println()
	fmt.Println("Shortcuts:")
	fmt.Println("  Ctrl+D               Exit docent")
	fmt.Println("  Ctrl+C               Cancel current input (twice to exit)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  AGENTS_API_KEY       Required: agent service API key")
	fmt.Println("  DOCENT_ENDPOINT      Agent service base URL (or endpoint in config.yaml)")
	fmt.Println("  DEBUG                Optional: enable debug logging")
	fmt.Println("  DOCENT_DEV           Optional: serve in development mode")
	fmt.Println()
	fmt.Println("Configuration file: ~/.docent/config.yaml")
}
