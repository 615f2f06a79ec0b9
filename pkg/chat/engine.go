// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package chat

import (
	"context"
	"fmt"

	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
	"github.com/clatonhendricks/MCPDeskClient/pkg/store"
)

// maxToolIterations caps chained tool rounds within one Send so a model
// that keeps requesting tools cannot loop forever.
const maxToolIterations = 10

// ToolExecutor supplies tool definitions and runs calls. *mcp.Manager
// satisfies it.
type ToolExecutor interface {
	AllTools(ctx context.Context) []providers.ToolDefinition
	CallTool(ctx context.Context, qualifiedName, argsJSON string) (string, error)
}

// ProviderSource yields the active provider. *providers.Registry
// satisfies it.
type ProviderSource interface {
	Current() (providers.Provider, error)
}

// History is the slice of the store the engine needs.
type History interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateTitle(ctx context.Context, id, title string) error
	AppendMessage(ctx context.Context, msg *store.Message) error
	Messages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// StatusEvent is transient progress feedback for the UI. Events are
// never persisted.
type StatusEvent struct {
	Stage    string // "thinking", "tool_call", "tool_result"
	ToolName string
	Detail   string
}

// Engine drives one conversation turn: persist the user message, loop
// the provider through tool calls, persist every step, return the final
// assistant text.
type Engine struct {
	source  ProviderSource
	tools   ToolExecutor
	history History

	systemPrompt string
	onStatus     func(StatusEvent)
}

func NewEngine(source ProviderSource, tools ToolExecutor, history History) *Engine {
	return &Engine{
		source:  source,
		tools:   tools,
		history: history,
	}
}

// SetSystemPrompt sets the instruction text prepended to every turn.
func (e *Engine) SetSystemPrompt(prompt string) { e.systemPrompt = prompt }

// OnStatus registers a transient progress callback.
func (e *Engine) OnStatus(fn func(StatusEvent)) { e.onStatus = fn }

func (e *Engine) emit(ev StatusEvent) {
	if e.onStatus != nil {
		e.onStatus(ev)
	}
}

// Send runs one user turn. The user message is persisted before the
// provider is called and is never rolled back: a provider failure leaves
// the question in the transcript so a retry has full context.
func (e *Engine) Send(ctx context.Context, conversationID, userText string) (string, error) {
	provider, err := e.source.Current()
	if err != nil {
		return "", err
	}

	conv, err := e.history.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}

	if err := e.history.AppendMessage(ctx, &store.Message{
		ConversationID: conversationID,
		Role:           providers.RoleUser,
		Content:        userText,
	}); err != nil {
		return "", fmt.Errorf("persisting user message: %w", err)
	}

	if conv.Title == "" {
		if err := e.history.UpdateTitle(ctx, conversationID, DeriveTitle(userText)); err != nil {
			logger.WarnCF("chat", "Failed to set conversation title", map[string]any{"error": err.Error()})
		}
	}

	rows, err := e.history.Messages(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	messages := make([]providers.Message, 0, len(rows)+1)
	if e.systemPrompt != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: e.systemPrompt})
	}
	messages = append(messages, historyFromRows(rows)...)

	var tools []providers.ToolDefinition
	if e.tools != nil {
		tools = e.tools.AllTools(ctx)
	}

	for iteration := 0; ; iteration++ {
		e.emit(StatusEvent{Stage: "thinking"})

		resp, err := provider.Chat(ctx, messages, tools)
		if err != nil {
			return "", err
		}

		// A plain reply ends the turn. So does spending the iteration
		// budget: a capped response's tool calls are never executed since
		// their results could not be sent back, and its content (possibly
		// empty) is surfaced as-is.
		if !resp.RequiresToolExecution() || iteration >= maxToolIterations-1 {
			if resp.RequiresToolExecution() {
				logger.WarnCF("chat", "Tool iteration cap reached", map[string]any{
					"cap":           maxToolIterations,
					"pending_calls": len(resp.ToolCalls),
				})
			}
			if err := e.history.AppendMessage(ctx, &store.Message{
				ConversationID: conversationID,
				Role:           providers.RoleAssistant,
				Content:        resp.Content,
			}); err != nil {
				return "", fmt.Errorf("persisting assistant message: %w", err)
			}
			return resp.Content, nil
		}

		messages = append(messages, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if err := e.history.AppendMessage(ctx, &store.Message{
				ConversationID: conversationID,
				Role:           providers.RoleAssistant,
				Content:        resp.Content,
				ToolCallID:     call.ID,
				ToolName:       call.Name,
				ToolArguments:  call.Arguments,
			}); err != nil {
				return "", fmt.Errorf("persisting tool call: %w", err)
			}
		}

		for _, call := range resp.ToolCalls {
			e.emit(StatusEvent{Stage: "tool_call", ToolName: call.Name})

			result := e.executeTool(ctx, call)

			e.emit(StatusEvent{Stage: "tool_result", ToolName: call.Name, Detail: TruncateForStorage(result)})

			messages = append(messages, providers.Message{
				Role:       providers.RoleTool,
				Content:    TruncateForModel(result),
				ToolCallID: call.ID,
			})
			if err := e.history.AppendMessage(ctx, &store.Message{
				ConversationID: conversationID,
				Role:           providers.RoleTool,
				Content:        TruncateForStorage(result),
				ToolResult:     TruncateForModel(result),
				ToolCallID:     call.ID,
				ToolName:       call.Name,
			}); err != nil {
				return "", fmt.Errorf("persisting tool result: %w", err)
			}
		}
	}
}

// executeTool runs one call and folds failures into the result text so
// the model can react to them.
func (e *Engine) executeTool(ctx context.Context, call providers.ToolCall) string {
	if e.tools == nil {
		return fmt.Sprintf("Error executing tool %s: no tool executor available", call.Name)
	}
	result, err := e.tools.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		logger.WarnCF("chat", "Tool call failed", map[string]any{
			"tool":  call.Name,
			"error": err.Error(),
		})
		return fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
	}
	return result
}
