package mcp

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docentlabs/docent/internal/log"
)

type searchInput struct {
	Query string `json:"query" jsonschema:"The documentation search query"`
}

// newDocsServer builds an in-process MCP server with a catalog shaped like
// the documentation search service's.
func newDocsServer(t *testing.T) *sdk.Server {
	t.Helper()

	server := sdk.NewServer(&sdk.Implementation{
		Name:    "mslearn-test",
		Version: "1.0.0",
	}, nil)

	schema, err := jsonschema.For[searchInput](nil)
	if err != nil {
		t.Fatalf("building input schema: %v", err)
	}

	sdk.AddTool(server, &sdk.Tool{
		Name:        "microsoft_docs_search",
		Description: "Search official Microsoft documentation.",
		InputSchema: schema,
	}, func(ctx context.Context, req *sdk.CallToolRequest, in searchInput) (*sdk.CallToolResult, any, error) {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: "results for " + in.Query}},
		}, nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "microsoft_code_sample_search",
		Description: "Search official code samples.",
		InputSchema: schema,
	}, func(ctx context.Context, req *sdk.CallToolRequest, in searchInput) (*sdk.CallToolResult, any, error) {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: "samples for " + in.Query}},
		}, nil, nil
	})

	return server
}

// connectProbe wires a probe to the in-process docs server via in-memory
// transports. The server session is cleaned up via t.Cleanup.
func connectProbe(t *testing.T, allowed []string) *Probe {
	t.Helper()

	server := newDocsServer(t)
	serverTransport, clientTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	return newProbeWithTransport("mslearn", allowed, clientTransport, log.NewNop())
}

func TestProbeListTools(t *testing.T) {
	probe := connectProbe(t, []string{"microsoft_docs_search"})

	tools, err := probe.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	if len(tools) != 2 {
		t.Fatalf("ListTools() returned %d tools, want 2", len(tools))
	}

	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		if tool.Description == "" {
			t.Errorf("ListTools() tool %q has empty description", tool.Name)
		}
		byName[tool.Name] = tool
	}

	search, ok := byName["microsoft_docs_search"]
	if !ok {
		t.Fatal("ListTools() missing microsoft_docs_search")
	}
	if !search.Allowed {
		t.Error("microsoft_docs_search should be allowed under the configured allow-list")
	}

	samples, ok := byName["microsoft_code_sample_search"]
	if !ok {
		t.Fatal("ListTools() missing microsoft_code_sample_search")
	}
	if samples.Allowed {
		t.Error("microsoft_code_sample_search should not be allowed under the configured allow-list")
	}
}

func TestProbeEmptyAllowListPermitsAll(t *testing.T) {
	probe := connectProbe(t, nil)

	tools, err := probe.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	for _, tool := range tools {
		if !tool.Allowed {
			t.Errorf("tool %q should be allowed when no allow-list is configured", tool.Name)
		}
	}
}

func TestToolAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		tool    string
		want    bool
	}{
		{"empty list permits", nil, "anything", true},
		{"listed tool", []string{"microsoft_docs_search"}, "microsoft_docs_search", true},
		{"unlisted tool", []string{"microsoft_docs_search"}, "web_search", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProbeWithTransport("mslearn", tt.allowed, nil, log.NewNop())
			if got := p.ToolAllowed(tt.tool); got != tt.want {
				t.Errorf("ToolAllowed(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	catalog := []Tool{
		{Name: "microsoft_docs_search"},
		{Name: "microsoft_code_sample_search"},
	}

	tests := []struct {
		name    string
		allowed []string
		want    []string
	}{
		{"empty allow-list", nil, nil},
		{"all present", []string{"microsoft_docs_search"}, nil},
		{"typo in config", []string{"microsoft_doc_search"}, []string{"microsoft_doc_search"}},
		{"mixed", []string{"microsoft_docs_search", "web_search"}, []string{"web_search"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProbeWithTransport("mslearn", tt.allowed, nil, log.NewNop())
			got := p.Missing(catalog)
			if len(got) != len(tt.want) {
				t.Fatalf("Missing() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Missing()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
