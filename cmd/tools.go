package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docentlabs/docent/internal/config"
	"github.com/docentlabs/docent/internal/mcp"
)

// runTools connects to the documentation tool server and prints its catalog.
// Only the tool-server config is needed; no agent service credential.
func runTools() error {
	cfg, err := config.LoadToolServer()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
	defer probeCancel()

	probe := mcp.NewProbe(cfg, newLogger(false))
	tools, err := probe.ListTools(probeCtx)
	if err != nil {
		return fmt.Errorf("listing tools from %q: %w", probe.Label(), err)
	}

	fmt.Printf("%s  %s\n\n", probe.Label(), cfg.ToolServer.URL)
	if len(tools) == 0 {
		fmt.Println("  (no tools exposed)")
		return nil
	}

	for _, tool := range tools {
		marker := " "
		if tool.Allowed {
			marker = "*"
		}
		fmt.Printf("  %s %-32s %s\n", marker, tool.Name, firstLine(tool.Description))
	}
	fmt.Println()
	fmt.Println("  * = allowed for the agent")

	if missing := probe.Missing(tools); len(missing) > 0 {
		fmt.Printf("\n  warning: allowed tools not in catalog: %s\n", strings.Join(missing, ", "))
	}

	return nil
}

// firstLine truncates a tool description to its first line; some servers
// ship multi-paragraph descriptions that wreck the table.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
