// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

func newTestAnthropicProvider(endpoint string) *AnthropicProvider {
	p := NewAnthropicProvider()
	p.Configure(config.ProviderConfig{
		Type:     config.ProviderAnthropic,
		APIKey:   "test-key",
		Model:    "claude-sonnet-4-5",
		Endpoint: endpoint,
		Enabled:  true,
	})
	return p
}

func TestAnthropicProvider_Chat_SystemAndToolResultMerging(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("path = %q, want /v1/messages", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1",
			"type":"message",
			"role":"assistant",
			"model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"done"}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":2}
		}`))
	}))
	defer server.Close()

	p := newTestAnthropicProvider(server.URL)
	resp, err := p.Chat(
		t.Context(),
		[]Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "fs__read_file", Arguments: `{"path":"a.txt"}`},
				{ID: "toolu_2", Name: "fs__stat", Arguments: `{"path":"a.txt"}`},
			}},
			{Role: RoleTool, ToolCallID: "toolu_1", Content: "data"},
			{Role: RoleTool, ToolCallID: "toolu_2", Content: "42 bytes"},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "done" {
		t.Fatalf("Content = %q, want %q", resp.Content, "done")
	}

	system, ok := body["system"].([]any)
	if !ok || len(system) != 1 {
		t.Fatalf("system = %#v, want one block", body["system"])
	}

	msgs, ok := body["messages"].([]any)
	if !ok {
		t.Fatalf("messages type = %T, want []any", body["messages"])
	}
	// user, assistant tool_use, merged tool results
	if len(msgs) != 3 {
		t.Fatalf("messages length = %d, want 3", len(msgs))
	}

	last := msgs[2].(map[string]any)
	if last["role"] != "user" {
		t.Fatalf("tool result carrier role = %v, want user", last["role"])
	}
	blocks, ok := last["content"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("tool result blocks = %#v, want len 2", last["content"])
	}
	first := blocks[0].(map[string]any)
	if first["type"] != "tool_result" || first["tool_use_id"] != "toolu_1" {
		t.Fatalf("first tool_result block mismatch: %#v", first)
	}
}

func TestAnthropicProvider_Chat_ParsesToolUseBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1",
			"type":"message",
			"role":"assistant",
			"model":"claude-sonnet-4-5",
			"content":[
				{"type":"text","text":"let me check"},
				{"type":"tool_use","id":"toolu_1","name":"fs__read_file","input":{"path":"a.txt"}}
			],
			"stop_reason":"tool_use",
			"usage":{"input_tokens":10,"output_tokens":2}
		}`))
	}))
	defer server.Close()

	p := newTestAnthropicProvider(server.URL)
	resp, err := p.Chat(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}, []ToolDefinition{
		{
			Name:        "fs__read_file",
			Description: "read a file",
			ParametersSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
				"required": []any{"path"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !resp.RequiresToolExecution() {
		t.Fatalf("RequiresToolExecution() = false, want true")
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls length = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "fs__read_file" {
		t.Fatalf("tool call = %+v", tc)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		t.Fatalf("Arguments not valid JSON: %v", err)
	}
	if args["path"] != "a.txt" {
		t.Fatalf("Arguments = %q", tc.Arguments)
	}
}

func TestAnthropicProvider_Chat_NotConfigured(t *testing.T) {
	p := NewAnthropicProvider()
	_, err := p.Chat(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != ErrNotConfigured {
		t.Fatalf("Chat() error = %v, want ErrNotConfigured", err)
	}
}

func TestNormalizeAnthropicBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                              anthropicDefaultBaseURL,
		"https://proxy.example.com/v1/": "https://proxy.example.com",
		"https://proxy.example.com":     "https://proxy.example.com",
	}
	for in, want := range cases {
		if got := normalizeAnthropicBaseURL(in); got != want {
			t.Fatalf("normalizeAnthropicBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
