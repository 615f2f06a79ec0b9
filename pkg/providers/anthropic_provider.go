// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

const (
	anthropicDefaultModel   = "claude-sonnet-4-5"
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicMaxTokens      = 4096
)

// AnthropicProvider talks to the Messages API through the official SDK.
type AnthropicProvider struct {
	mu          sync.RWMutex
	client      *anthropic.Client
	displayName string
	apiKey      string
	model       string
}

func NewAnthropicProvider() *AnthropicProvider {
	return &AnthropicProvider{}
}

func (p *AnthropicProvider) ID() string { return "anthropic" }

func (p *AnthropicProvider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.displayName != "" {
		return p.displayName
	}
	return "Anthropic"
}

func (p *AnthropicProvider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil && p.apiKey != ""
}

func (p *AnthropicProvider) IsAuthenticated() bool { return p.IsConfigured() }

func (p *AnthropicProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model != "" {
		return p.model
	}
	return anthropicDefaultModel
}

func (p *AnthropicProvider) Configure(cfg config.ProviderConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.displayName = cfg.DisplayName
	p.model = cfg.Model
	p.apiKey = cfg.APIKey

	if p.apiKey == "" {
		p.client = nil
		return
	}

	baseURL := normalizeAnthropicBaseURL(cfg.Endpoint)
	client := anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(baseURL),
	)
	p.client = &client
}

// SetEndpoint rebuilds the client against a new base URL, keeping the held key.
func (p *AnthropicProvider) SetEndpoint(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.apiKey == "" {
		return
	}
	client := anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(normalizeAnthropicBaseURL(endpoint)),
	)
	p.client = &client
}

func (p *AnthropicProvider) SetModel(modelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = modelID
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{
		{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5"},
		{ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1"},
		{ID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku"},
	}, nil
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	p.mu.RLock()
	client := p.client
	model := p.model
	p.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = anthropicDefaultModel
	}

	params := buildAnthropicParams(messages, tools, model)

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, newUpstreamError("Anthropic", apiErr.StatusCode, []byte(apiErr.Error()))
		}
		return nil, fmt.Errorf("Anthropic API request failed: %w", err)
	}

	return parseAnthropicResponse(resp), nil
}

// buildAnthropicParams translates the transcript into Messages API form.
// System messages go into the dedicated System field, and consecutive
// tool results are merged into a single user message because the API
// requires all tool_result blocks for one assistant turn to arrive
// together, immediately after that assistant message.
func buildAnthropicParams(messages []Message, tools []ToolDefinition, model string) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam

	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, decodeToolArguments(tc), tc.Name))
				}
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			} else {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case RoleTool:
			var toolBlocks []anthropic.ContentBlockParamUnion
			for i < len(messages) && messages[i].Role == RoleTool {
				toolBlocks = append(toolBlocks,
					anthropic.NewToolResultBlock(messages[i].ToolCallID, messages[i].Content, false))
				i++
			}
			i-- // outer loop will increment
			out = append(out, anthropic.NewUserMessage(toolBlocks...))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  out,
		MaxTokens: anthropicMaxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = buildAnthropicTools(tools)
	}
	return params
}

func decodeToolArguments(tc ToolCall) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(tc.Arguments) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		logger.WarnCF("anthropic", "Tool call arguments are not valid JSON", map[string]any{
			"tool":  tc.Name,
			"error": err.Error(),
		})
		return map[string]any{"raw": tc.Arguments}
	}
	return args
}

func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name: t.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.ParametersSchema["properties"],
			},
		}
		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}
		if req, ok := t.ParametersSchema["required"].([]any); ok {
			required := make([]string, 0, len(req))
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
			tool.InputSchema.Required = required
		}
		result = append(result, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return result
}

func parseAnthropicResponse(resp *anthropic.Message) *ChatResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			content.WriteString(tb.Text)
		case "tool_use":
			tu := block.AsToolUse()
			toolCalls = append(toolCalls, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}

	return &ChatResponse{
		Content:   content.String(),
		ToolCalls: toolCalls,
	}
}

func normalizeAnthropicBaseURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return anthropicDefaultBaseURL
	}
	return base
}
