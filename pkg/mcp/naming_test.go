// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package mcp

import "testing"

func TestQualifyToolName(t *testing.T) {
	if got := QualifyToolName("filesystem", "read_file"); got != "filesystem__read_file" {
		t.Fatalf("QualifyToolName = %q", got)
	}
}

func TestSplitToolName(t *testing.T) {
	tests := []struct {
		qualified  string
		wantServer string
		wantTool   string
		wantOK     bool
	}{
		{"filesystem__read_file", "filesystem", "read_file", true},
		// Tool names containing the separator split on the first one only.
		{"srv__tool__with__underscores", "srv", "tool__with__underscores", true},
		{"no-separator", "", "", false},
		{"__tool", "", "", false},
		{"server__", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		server, tool, ok := SplitToolName(tt.qualified)
		if server != tt.wantServer || tool != tt.wantTool || ok != tt.wantOK {
			t.Errorf("SplitToolName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.qualified, server, tool, ok, tt.wantServer, tt.wantTool, tt.wantOK)
		}
	}
}

func TestQualifyRoundTrip(t *testing.T) {
	server, tool, ok := SplitToolName(QualifyToolName("fs", "read__raw"))
	if !ok || server != "fs" || tool != "read__raw" {
		t.Fatalf("round trip = (%q, %q, %v)", server, tool, ok)
	}
}
