// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

const (
	copilotTokenURL        = "https://api.github.com/copilot_internal/v2/token"
	copilotDefaultEndpoint = "https://api.individual.githubcopilot.com"

	// Sessions are refreshed this long before their stated expiry so a
	// request never goes out with a token about to lapse mid-flight.
	sessionExpiryMargin = 2 * time.Minute
)

// CopilotSession is a short-lived service token minted from the durable
// GitHub OAuth token.
type CopilotSession struct {
	Token     string
	ExpiresAt time.Time
	Endpoint  string
}

func (s *CopilotSession) Valid() bool {
	return s != nil && s.Token != "" && time.Until(s.ExpiresAt) > sessionExpiryMargin
}

type copilotTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Endpoints struct {
		API string `json:"api"`
	} `json:"endpoints"`
}

// ExchangeCopilotSession trades a GitHub OAuth token for a Copilot
// session token. A non-2xx response means the account has no Copilot
// entitlement; callers treat that as a signal to fall back, not fail.
func ExchangeCopilotSession(ctx context.Context, client *http.Client, oauthToken, tokenURL string) (*CopilotSession, error) {
	if tokenURL == "" {
		tokenURL = copilotTokenURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+oauthToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("copilot token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("copilot token exchange failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok copilotTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("parsing copilot token response: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("copilot token response missing token")
	}

	endpoint := strings.TrimRight(tok.Endpoints.API, "/")
	if endpoint == "" {
		endpoint = copilotDefaultEndpoint
	}

	return &CopilotSession{
		Token:     tok.Token,
		ExpiresAt: time.Unix(tok.ExpiresAt, 0),
		Endpoint:  endpoint,
	}, nil
}

// SessionManager caches the Copilot session and re-exchanges the OAuth
// token when the cached one nears expiry.
type SessionManager struct {
	mu         sync.Mutex
	oauthToken string
	session    *CopilotSession
	tokenURL   string
	httpClient *http.Client
}

func NewSessionManager(oauthToken string) *SessionManager {
	return &SessionManager{
		oauthToken: oauthToken,
		tokenURL:   copilotTokenURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewSessionManagerForTest wires custom endpoints. Exported for tests.
func NewSessionManagerForTest(oauthToken, tokenURL string, client *http.Client) *SessionManager {
	return &SessionManager{
		oauthToken: oauthToken,
		tokenURL:   tokenURL,
		httpClient: client,
	}
}

// Session returns a valid Copilot session, exchanging a fresh one if
// the cached session is absent or within the expiry margin.
func (m *SessionManager) Session(ctx context.Context) (*CopilotSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Valid() {
		return m.session, nil
	}

	sess, err := ExchangeCopilotSession(ctx, m.httpClient, m.oauthToken, m.tokenURL)
	if err != nil {
		return nil, err
	}
	logger.InfoCF("auth", "Copilot session refreshed", map[string]any{
		"endpoint":   sess.Endpoint,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
	m.session = sess
	return sess, nil
}

// Invalidate drops the cached session so the next call re-exchanges.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}
