// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

const (
	ollamaDefaultEndpoint = "http://localhost:11434"
	ollamaDefaultModel    = "llama3.2"
)

// OllamaProvider speaks the native Ollama HTTP API. It needs no API key,
// only a reachable daemon, so IsConfigured is true whenever an endpoint
// is set.
type OllamaProvider struct {
	mu          sync.RWMutex
	httpClient  *http.Client
	displayName string
	endpoint    string
	model       string
}

func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{
		httpClient: &http.Client{Timeout: chatRequestTimeout},
		endpoint:   ollamaDefaultEndpoint,
	}
}

func (p *OllamaProvider) ID() string { return "ollama" }

func (p *OllamaProvider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.displayName != "" {
		return p.displayName
	}
	return "Ollama"
}

func (p *OllamaProvider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint != ""
}

func (p *OllamaProvider) IsAuthenticated() bool { return p.IsConfigured() }

func (p *OllamaProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model != "" {
		return p.model
	}
	return ollamaDefaultModel
}

func (p *OllamaProvider) Configure(cfg config.ProviderConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.displayName = cfg.DisplayName
	p.model = cfg.Model
	p.endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if p.endpoint == "" {
		p.endpoint = ollamaDefaultEndpoint
	}
}

func (p *OllamaProvider) SetModel(modelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = modelID
}

// SetEndpoint points the adapter at a different daemon.
func (p *OllamaProvider) SetEndpoint(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = strings.TrimRight(endpoint, "/")
	if p.endpoint == "" {
		p.endpoint = ollamaDefaultEndpoint
	}
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels queries the daemon for locally pulled models.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	p.mu.RLock()
	endpoint := p.endpoint
	p.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building tags request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing Ollama models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tags response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError("Ollama", resp.StatusCode, body)
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("decoding tags response: %w", err)
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, ModelInfo{ID: m.Name, DisplayName: m.Name})
	}
	return models, nil
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	p.mu.RLock()
	endpoint := p.endpoint
	model := p.model
	p.mu.RUnlock()

	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = ollamaDefaultModel
	}

	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: buildOllamaMessages(messages),
		Stream:   false,
	}
	for _, tool := range tools {
		reqBody.Tools = append(reqBody.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.ParametersSchema,
			},
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError("Ollama", resp.StatusCode, body)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	result := &ChatResponse{Content: chatResp.Message.Content}
	for _, tc := range chatResp.Message.ToolCalls {
		args := strings.TrimSpace(string(tc.Function.Arguments))
		if args == "" {
			args = "{}"
		}
		// Ollama does not assign call ids, so mint one to keep the
		// transcript correlatable.
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if len(result.ToolCalls) > 0 {
		logger.DebugCF("ollama", "Model requested tool calls", map[string]any{
			"count": len(result.ToolCalls),
		})
	}
	return result, nil
}

func buildOllamaMessages(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		om := ollamaMessage{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			args := json.RawMessage(tc.Arguments)
			if !json.Valid(args) {
				args = json.RawMessage(`{}`)
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, om)
	}
	return out
}
