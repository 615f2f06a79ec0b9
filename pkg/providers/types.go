// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

// Message roles shared across all adapters. Each adapter maps these onto its
// own wire vocabulary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one provider-facing conversation turn. Assistant turns may carry
// grouped tool calls; tool turns carry the id of the call they answer.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-emitted invocation request. Arguments is the raw JSON
// text as the provider produced it; it is not guaranteed to be valid JSON and
// must be treated as untrusted input.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes one capability offered to the model. Name is
// globally unique, namespaced "<source>__<tool>" by the tool executor.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema map[string]any
}

// ChatResponse is the result of one provider round-trip. Content accumulates
// all text parts the provider emitted.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// RequiresToolExecution reports whether the orchestration loop must execute
// tools before the conversation can continue. This flag, not the text
// content, drives the loop.
func (r *ChatResponse) RequiresToolExecution() bool {
	return len(r.ToolCalls) > 0
}

// ModelInfo is one selectable model in a provider's catalog.
type ModelInfo struct {
	ID          string
	DisplayName string
}
