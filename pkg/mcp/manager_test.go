// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package mcp

import (
	"testing"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

func TestManager_ListServers_SkipsDisabled(t *testing.T) {
	m := NewManager(map[string]config.MCPServerConfig{
		"filesystem": {Command: "mcp-fs", Enabled: true},
		"disabled":   {Command: "mcp-x", Enabled: false},
		"remote":     {URL: "https://mcp.example.com/sse", Enabled: true},
	})
	defer m.Stop()

	summaries := m.ListServers()
	if len(summaries) != 2 {
		t.Fatalf("summaries = %+v, want 2 entries", summaries)
	}
	// Sorted by name.
	if summaries[0].Name != "filesystem" || summaries[1].Name != "remote" {
		t.Fatalf("order = %q, %q", summaries[0].Name, summaries[1].Name)
	}
	if summaries[0].Status != "stopped" {
		t.Fatalf("unstarted server status = %q, want stopped", summaries[0].Status)
	}
	if !summaries[1].IsHTTP {
		t.Fatal("URL-configured server should report IsHTTP")
	}
}

func TestManager_CallTool_MalformedName(t *testing.T) {
	m := NewManager(nil)
	defer m.Stop()

	if _, err := m.CallTool(t.Context(), "not-qualified", "{}"); err == nil {
		t.Fatal("expected error for name without separator")
	}
}

func TestManager_CallTool_UnknownServer(t *testing.T) {
	m := NewManager(nil)
	defer m.Stop()

	if _, err := m.CallTool(t.Context(), "ghost__tool", "{}"); err == nil {
		t.Fatal("expected error for unknown server")
	}
}

func TestManager_CallTool_InvalidArguments(t *testing.T) {
	m := NewManager(map[string]config.MCPServerConfig{
		"fs": {Command: "mcp-fs", Enabled: true},
	})
	defer m.Stop()

	_, err := m.CallTool(t.Context(), "fs__read_file", "{not json")
	if err == nil {
		t.Fatal("expected error for invalid argument JSON")
	}
}

func TestNormalizeInputSchema(t *testing.T) {
	got := normalizeInputSchema(nil)
	if got["type"] != "object" {
		t.Fatalf("nil schema type = %v, want object", got["type"])
	}
	if _, ok := got["properties"]; !ok {
		t.Fatal("nil schema should gain empty properties")
	}

	got = normalizeInputSchema(map[string]any{
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
	})
	if got["type"] != "object" {
		t.Fatalf("missing type should default to object, got %v", got["type"])
	}

	// Non-map schemas round-trip through JSON.
	type schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
	}
	got = normalizeInputSchema(schema{Type: "object", Properties: map[string]any{}})
	if got["type"] != "object" {
		t.Fatalf("struct schema type = %v", got["type"])
	}
}
