// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/clatonhendricks/MCPDeskClient/pkg/auth"
	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

const (
	copilotDefaultModel    = "gpt-4o"
	githubModelsEndpoint   = "https://models.github.ai/v1"
	copilotEditorVersion   = "vscode/1.96.0"
	copilotPluginVersion   = "copilot-chat/0.24.0"
	copilotIntegrationID   = "vscode-chat"
	copilotOpenAIIntent    = "conversation-panel"
	copilotCredentialKey   = "github-copilot"
	copilotAuthMethodOAuth = "device-flow"
)

// CopilotProvider serves GitHub-backed chat two ways. A Copilot
// subscription reached through the session-token exchange is preferred;
// accounts without one degrade to the GitHub Models endpoint using the
// same GitHub token. A classic PAT in the config skips the device flow
// and goes straight to GitHub Models.
type CopilotProvider struct {
	mu          sync.RWMutex
	displayName string
	model       string
	githubToken string
	patAuth     bool

	store    *auth.Store
	flow     *auth.DeviceFlow
	sessions *auth.SessionManager

	// Test seams. Zero values select production endpoints.
	sessionTokenURL string
	modelsBaseURL   string
	httpClient      *http.Client
}

func NewCopilotProvider() *CopilotProvider {
	return &CopilotProvider{
		store:      auth.NewStore(auth.DefaultStorePath()),
		flow:       auth.NewGitHubDeviceFlow(),
		httpClient: &http.Client{Timeout: chatRequestTimeout},
	}
}

// IsPersonalAccessToken reports whether key is a classic or fine-grained
// GitHub PAT rather than a device-flow OAuth token.
func IsPersonalAccessToken(key string) bool {
	return strings.HasPrefix(key, "ghp_") || strings.HasPrefix(key, "github_pat_")
}

func (p *CopilotProvider) ID() string { return "github-copilot" }

func (p *CopilotProvider) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.displayName != "" {
		return p.displayName
	}
	return "GitHub Copilot"
}

// IsConfigured reports whether a GitHub token is held, adopting the
// stored credential from an earlier device flow when the in-memory one
// is empty. Without a token there is nothing a request could use.
func (p *CopilotProvider) IsConfigured() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.githubToken != "" {
		return true
	}
	cred, err := p.store.Get(copilotCredentialKey)
	if err != nil || cred == nil || cred.AccessToken == "" {
		return false
	}
	p.setTokenLocked(cred.AccessToken)
	return true
}

func (p *CopilotProvider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.githubToken != ""
}

func (p *CopilotProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model != "" {
		return p.model
	}
	return copilotDefaultModel
}

func (p *CopilotProvider) Configure(cfg config.ProviderConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.displayName = cfg.DisplayName
	p.model = cfg.Model

	if IsPersonalAccessToken(cfg.APIKey) {
		p.githubToken = cfg.APIKey
		p.patAuth = true
		p.sessions = nil
		return
	}

	p.patAuth = false
	cred, err := p.store.Get(copilotCredentialKey)
	if err != nil {
		logger.WarnCF("copilot", "Failed to load stored credential", map[string]any{"error": err.Error()})
		return
	}
	if cred != nil && cred.AccessToken != "" {
		p.setTokenLocked(cred.AccessToken)
	}
}

func (p *CopilotProvider) SetModel(modelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = modelID
}

// Authenticate runs the device flow, persists the GitHub token, and
// primes the Copilot session. A failed session exchange is not an
// authentication failure; it only means requests go to GitHub Models.
func (p *CopilotProvider) Authenticate(ctx context.Context, prompt func(auth.DeviceFlowPrompt)) error {
	token, err := p.flow.Authorize(ctx, prompt)
	if err != nil {
		return err
	}

	if err := p.store.Set(copilotCredentialKey, &auth.Credential{
		AccessToken: token,
		Provider:    copilotCredentialKey,
		AuthMethod:  copilotAuthMethodOAuth,
	}); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	p.mu.Lock()
	p.patAuth = false
	p.setTokenLocked(token)
	sessions := p.sessions
	p.mu.Unlock()

	if sessions != nil {
		if _, err := sessions.Session(ctx); err != nil {
			logger.InfoCF("copilot", "No Copilot entitlement, using GitHub Models", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// Logout removes the stored credential and forgets in-memory tokens.
func (p *CopilotProvider) Logout() error {
	p.mu.Lock()
	p.githubToken = ""
	p.sessions = nil
	p.mu.Unlock()
	return p.store.Delete(copilotCredentialKey)
}

func (p *CopilotProvider) setTokenLocked(token string) {
	p.githubToken = token
	if p.sessionTokenURL != "" {
		p.sessions = auth.NewSessionManagerForTest(token, p.sessionTokenURL, p.httpClient)
	} else {
		p.sessions = auth.NewSessionManager(token)
	}
}

func (p *CopilotProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	client, providerName, err := p.chatClient(ctx)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    p.CurrentModel(),
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
			return nil, newUpstreamError(providerName, apiErr.StatusCode, []byte(apiErr.Message))
		}
		return nil, fmt.Errorf("%s request failed: %w", providerName, err)
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

// chatClient picks the backend for this request. The Copilot session
// path wins when an exchange succeeds; everything else lands on GitHub
// Models.
func (p *CopilotProvider) chatClient(ctx context.Context) (*openai.Client, string, error) {
	p.mu.RLock()
	token := p.githubToken
	pat := p.patAuth
	sessions := p.sessions
	p.mu.RUnlock()

	if token == "" {
		return nil, "", ErrNotConfigured
	}

	if !pat && sessions != nil {
		sess, err := sessions.Session(ctx)
		if err == nil {
			return p.newSDKClient(sess.Token, sess.Endpoint, true), "GitHub Copilot", nil
		}
		logger.DebugCF("copilot", "Session exchange failed, falling back to GitHub Models", map[string]any{
			"error": err.Error(),
		})
	}

	return p.newSDKClient(token, p.modelsEndpoint(), false), "GitHub Models", nil
}

func (p *CopilotProvider) newSDKClient(token, baseURL string, copilotSession bool) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithHTTPClient(p.httpClient),
	}
	if copilotSession {
		opts = append(opts,
			option.WithHeader("Editor-Version", copilotEditorVersion),
			option.WithHeader("Editor-Plugin-Version", copilotPluginVersion),
			option.WithHeader("Copilot-Integration-Id", copilotIntegrationID),
			option.WithHeader("Openai-Intent", copilotOpenAIIntent),
		)
	}
	client := openai.NewClient(opts...)
	return &client
}

func (p *CopilotProvider) modelsEndpoint() string {
	if p.modelsBaseURL != "" {
		return p.modelsBaseURL
	}
	return githubModelsEndpoint
}

type modelCatalogResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// ListModels asks the active backend for its catalog. Catalog failures
// degrade to a small static list so model selection keeps working
// offline.
func (p *CopilotProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	p.mu.RLock()
	token := p.githubToken
	pat := p.patAuth
	sessions := p.sessions
	p.mu.RUnlock()

	if token == "" {
		return copilotFallbackModels(), nil
	}

	bearer := token
	base := p.modelsEndpoint()
	var headers http.Header
	if !pat && sessions != nil {
		if sess, err := sessions.Session(ctx); err == nil {
			bearer = sess.Token
			base = sess.Endpoint
			headers = http.Header{}
			headers.Set("Editor-Version", copilotEditorVersion)
			headers.Set("Copilot-Integration-Id", copilotIntegrationID)
		}
	}
	if p.modelsBaseURL != "" {
		base = p.modelsBaseURL
	}

	models, err := p.fetchModelCatalog(ctx, base, bearer, headers)
	if err != nil {
		logger.WarnCF("copilot", "Model catalog fetch failed, using fallback list", map[string]any{
			"error": err.Error(),
		})
		return copilotFallbackModels(), nil
	}
	return models, nil
}

func (p *CopilotProvider) fetchModelCatalog(ctx context.Context, base, bearer string, extra http.Header) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newUpstreamError("GitHub", resp.StatusCode, body)
	}

	var catalog modelCatalogResponse
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("decoding model catalog: %w", err)
	}

	models := make([]ModelInfo, 0, len(catalog.Data))
	for _, m := range catalog.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, ModelInfo{ID: m.ID, DisplayName: name})
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}
	return models, nil
}

func copilotFallbackModels() []ModelInfo {
	return []ModelInfo{
		{ID: "gpt-4o", DisplayName: "GPT-4o"},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini"},
		{ID: "o3-mini", DisplayName: "o3-mini"},
		{ID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4"},
	}
}

// SessionExpiresIn reports how long the current Copilot session has
// left, for status display. Zero when running on GitHub Models.
func (p *CopilotProvider) SessionExpiresIn(ctx context.Context) time.Duration {
	p.mu.RLock()
	sessions := p.sessions
	pat := p.patAuth
	p.mu.RUnlock()

	if pat || sessions == nil {
		return 0
	}
	sess, err := sessions.Session(ctx)
	if err != nil {
		return 0
	}
	return time.Until(sess.ExpiresAt)
}
