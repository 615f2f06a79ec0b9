// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

const (
	openaiDefaultModel   = "gpt-4o"
	chatRequestTimeout   = 120 * time.Second
	openaiDefaultAPIBase = "https://api.openai.com/v1"
)

// OpenAIProvider is the direct-key adapter, built on the official SDK.
// It also serves endpoint-override deployments (Azure-style) via the
// Endpoint config field.
type OpenAIProvider struct {
	mu          sync.RWMutex
	client      *openai.Client
	displayName string
	apiKey      string
	model       string
	endpoint    string
}

func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{}
}

func (p *OpenAIProvider) ID() string { return "openai" }

func (p *OpenAIProvider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.displayName != "" {
		return p.displayName
	}
	return "OpenAI"
}

func (p *OpenAIProvider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil && p.apiKey != ""
}

func (p *OpenAIProvider) IsAuthenticated() bool { return p.IsConfigured() }

func (p *OpenAIProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model != "" {
		return p.model
	}
	return openaiDefaultModel
}

func (p *OpenAIProvider) Configure(cfg config.ProviderConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.displayName = cfg.DisplayName
	p.model = cfg.Model
	p.endpoint = strings.TrimRight(cfg.Endpoint, "/")
	p.apiKey = cfg.APIKey

	if p.apiKey == "" {
		p.client = nil
		return
	}
	p.client = newOpenAIClient(p.apiKey, p.endpoint)
}

func newOpenAIClient(apiKey, endpoint string) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: chatRequestTimeout}),
	}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	client := openai.NewClient(opts...)
	return &client
}

func (p *OpenAIProvider) SetModel(modelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = modelID
}

// SetEndpoint swaps the base URL without touching credentials.
func (p *OpenAIProvider) SetEndpoint(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = strings.TrimRight(endpoint, "/")
	if p.apiKey != "" {
		p.client = newOpenAIClient(p.apiKey, p.endpoint)
	}
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{
		{ID: "gpt-4o", DisplayName: "GPT-4o"},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini"},
		{ID: "gpt-4.1", DisplayName: "GPT-4.1"},
		{ID: "o3-mini", DisplayName: "o3-mini"},
	}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	p.mu.RLock()
	client := p.client
	model := p.model
	p.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = openaiDefaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: buildOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = buildOpenAITools(tools)
		params.ToolChoice.OfAuto = openai.String(string(openai.ChatCompletionToolChoiceOptionAutoAuto))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, newUpstreamError("OpenAI", apiErr.StatusCode, []byte(apiErr.Message))
		}
		return nil, fmt.Errorf("OpenAI API request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return &ChatResponse{}, nil
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:   choice.Message.Content,
		ToolCalls: parseOpenAIToolCalls(choice.Message.ToolCalls),
	}, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, buildOpenAIAssistantMessage(msg))
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func buildOpenAIAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		if tc.Name == "" {
			continue
		}
		args := tc.Arguments
		if args == "" {
			args = "{}"
		}
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func buildOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}
		fn := shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  shared.FunctionParameters(tool.ParametersSchema),
		}
		out = append(out, openai.ChatCompletionFunctionTool(fn))
	}
	return out
}

func parseOpenAIToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	result := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		switch v := call.AsAny().(type) {
		case openai.ChatCompletionMessageFunctionToolCall:
			args := v.Function.Arguments
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			result = append(result, ToolCall{
				ID:        v.ID,
				Name:      v.Function.Name,
				Arguments: args,
			})
		}
	}
	return result
}
