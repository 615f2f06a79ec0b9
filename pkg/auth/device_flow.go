// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

// GitHub OAuth app constants for the Copilot device flow. The client id
// is the public one used by editor integrations; device flow apps have
// no secret.
const (
	githubClientID        = "Iv1.b507a08c87ecfe98"
	githubOAuthScope      = "read:user"
	githubDeviceCodeURL   = "https://github.com/login/device/code"
	githubTokenURL        = "https://github.com/login/oauth/access_token"
	githubDeviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	minPollInterval = 5 * time.Second
	maxDeviceWait   = 5 * time.Minute
)

// ErrAuthCancelled is returned when the user abandons the device flow
// before authorizing. It is distinct from flow failures so callers can
// stay quiet about it.
var ErrAuthCancelled = errors.New("authentication cancelled")

// DeviceFlowError is a terminal OAuth failure (denied, expired code,
// malformed response). Pending and slow_down states never surface as
// errors.
type DeviceFlowError struct {
	Code        string
	Description string
}

func (e *DeviceFlowError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("device flow failed: %s (%s)", e.Description, e.Code)
	}
	return fmt.Sprintf("device flow failed: %s", e.Code)
}

// DeviceFlowPrompt carries what the user must see to authorize.
type DeviceFlowPrompt struct {
	VerificationURI string
	UserCode        string
}

// DeviceFlow runs the GitHub OAuth device-code grant. The zero value is
// not usable; construct with NewGitHubDeviceFlow.
type DeviceFlow struct {
	ClientID      string
	Scope         string
	DeviceCodeURL string
	TokenURL      string
	HTTPClient    *http.Client

	// MinInterval clamps the server-suggested poll interval from below.
	MinInterval time.Duration
	// MaxWait bounds the whole flow regardless of the server's expires_in.
	MaxWait time.Duration
	// SlowDownStep is added to the poll interval on every slow_down
	// response. RFC 8628 mandates 5 seconds.
	SlowDownStep time.Duration
}

func NewGitHubDeviceFlow() *DeviceFlow {
	return &DeviceFlow{
		ClientID:      githubClientID,
		Scope:         githubOAuthScope,
		DeviceCodeURL: githubDeviceCodeURL,
		TokenURL:      githubTokenURL,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
		MinInterval:   minPollInterval,
		MaxWait:       maxDeviceWait,
		SlowDownStep:  5 * time.Second,
	}
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type deviceTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authorize runs the full grant: request a device code, hand the
// verification prompt to the caller, then poll until the user approves.
// It returns the OAuth access token. Cancelling ctx yields
// ErrAuthCancelled.
func (f *DeviceFlow) Authorize(ctx context.Context, prompt func(DeviceFlowPrompt)) (string, error) {
	dc, err := f.requestDeviceCode(ctx)
	if err != nil {
		return "", err
	}

	logger.InfoCF("auth", "Device code issued", map[string]any{
		"verification_uri": dc.VerificationURI,
		"expires_in":       dc.ExpiresIn,
	})

	if prompt != nil {
		prompt(DeviceFlowPrompt{
			VerificationURI: dc.VerificationURI,
			UserCode:        dc.UserCode,
		})
	}

	return f.pollToken(ctx, dc)
}

func (f *DeviceFlow) requestDeviceCode(ctx context.Context) (*deviceCodeResponse, error) {
	form := url.Values{}
	form.Set("client_id", f.ClientID)
	form.Set("scope", f.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.DeviceCodeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device code request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var dc deviceCodeResponse
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, &DeviceFlowError{Code: "invalid_response", Description: "missing device_code or user_code"}
	}
	return &dc, nil
}

func (f *DeviceFlow) pollToken(ctx context.Context, dc *deviceCodeResponse) (string, error) {
	interval := time.Duration(dc.Interval) * time.Second
	if interval < f.MinInterval {
		interval = f.MinInterval
	}

	deadline := time.Now().Add(f.MaxWait)
	if dc.ExpiresIn > 0 {
		codeDeadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
		if codeDeadline.Before(deadline) {
			deadline = codeDeadline
		}
	}

	form := url.Values{}
	form.Set("client_id", f.ClientID)
	form.Set("device_code", dc.DeviceCode)
	form.Set("grant_type", githubDeviceGrantType)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ErrAuthCancelled
		case <-time.After(interval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := f.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrAuthCancelled
			}
			// transient network error, keep polling
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var tok deviceTokenResponse
		if err := json.Unmarshal(body, &tok); err != nil {
			continue
		}

		switch tok.Error {
		case "":
			if tok.AccessToken != "" {
				return tok.AccessToken, nil
			}
			return "", &DeviceFlowError{Code: "invalid_response", Description: "token response missing access_token"}
		case "authorization_pending":
			continue
		case "slow_down":
			interval += f.slowDownStep()
			continue
		default:
			return "", &DeviceFlowError{Code: tok.Error, Description: tok.ErrorDescription}
		}
	}

	return "", &DeviceFlowError{Code: "timeout", Description: "timed out waiting for authorization"}
}

func (f *DeviceFlow) slowDownStep() time.Duration {
	if f.SlowDownStep > 0 {
		return f.SlowDownStep
	}
	return 5 * time.Second
}
