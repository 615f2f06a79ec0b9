// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestDeviceFlow(server *httptest.Server) *DeviceFlow {
	f := NewGitHubDeviceFlow()
	f.DeviceCodeURL = server.URL + "/login/device/code"
	f.TokenURL = server.URL + "/login/oauth/access_token"
	f.HTTPClient = server.Client()
	f.MinInterval = 10 * time.Millisecond
	f.MaxWait = 2 * time.Second
	return f
}

func writeDeviceCode(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(deviceCodeResponse{
		DeviceCode:      "dc-123",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		ExpiresIn:       900,
		Interval:        0,
	})
}

func TestDeviceFlow_Authorize_PendingThenSuccess(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login/device/code":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.FormValue("client_id") != githubClientID {
				t.Fatalf("client_id = %q", r.FormValue("client_id"))
			}
			if r.FormValue("scope") != githubOAuthScope {
				t.Fatalf("scope = %q", r.FormValue("scope"))
			}
			writeDeviceCode(t, w)
		case "/login/oauth/access_token":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.FormValue("grant_type") != githubDeviceGrantType {
				t.Fatalf("grant_type = %q", r.FormValue("grant_type"))
			}
			if r.FormValue("device_code") != "dc-123" {
				t.Fatalf("device_code = %q", r.FormValue("device_code"))
			}
			polls++
			w.Header().Set("Content-Type", "application/json")
			if polls < 3 {
				_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "authorization_pending"})
				return
			}
			_ = json.NewEncoder(w).Encode(deviceTokenResponse{AccessToken: "gho_test", TokenType: "bearer"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := newTestDeviceFlow(server)

	var prompted DeviceFlowPrompt
	token, err := f.Authorize(t.Context(), func(p DeviceFlowPrompt) { prompted = p })
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if token != "gho_test" {
		t.Fatalf("token = %q, want gho_test", token)
	}
	if prompted.UserCode != "ABCD-1234" || prompted.VerificationURI == "" {
		t.Fatalf("prompt = %+v", prompted)
	}
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}
}

func TestDeviceFlow_Authorize_SlowDownBacksOffAndRecovers(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/device/code" {
			writeDeviceCode(t, w)
			return
		}
		polls++
		w.Header().Set("Content-Type", "application/json")
		switch polls {
		case 1, 2:
			_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "slow_down"})
		case 3:
			_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "authorization_pending"})
		default:
			_ = json.NewEncoder(w).Encode(deviceTokenResponse{AccessToken: "gho_test", TokenType: "bearer"})
		}
	}))
	defer server.Close()

	f := newTestDeviceFlow(server)
	f.SlowDownStep = 5 * time.Millisecond

	start := time.Now()
	token, err := f.Authorize(t.Context(), nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if token != "gho_test" {
		t.Fatalf("token = %q, want gho_test", token)
	}
	if polls != 4 {
		t.Fatalf("polls = %d, want 4", polls)
	}
	// Two slow_down responses widen the interval for every later poll:
	// 10ms + 15ms + 20ms + 20ms of waiting at minimum.
	if elapsed := time.Since(start); elapsed < 65*time.Millisecond {
		t.Fatalf("elapsed = %v, backed-off polling should take at least 65ms", elapsed)
	}
}

func TestSlowDownStep_DefaultsWhenUnset(t *testing.T) {
	var f DeviceFlow
	if got := f.slowDownStep(); got != 5*time.Second {
		t.Fatalf("slowDownStep() = %v, want 5s", got)
	}
	f.SlowDownStep = time.Second
	if got := f.slowDownStep(); got != time.Second {
		t.Fatalf("slowDownStep() = %v, want 1s", got)
	}
}

func TestDeviceFlow_Authorize_AccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/device/code" {
			writeDeviceCode(t, w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "access_denied", ErrorDescription: "user denied"})
	}))
	defer server.Close()

	f := newTestDeviceFlow(server)
	_, err := f.Authorize(t.Context(), nil)

	var flowErr *DeviceFlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("Authorize() error = %v, want *DeviceFlowError", err)
	}
	if flowErr.Code != "access_denied" {
		t.Fatalf("Code = %q, want access_denied", flowErr.Code)
	}
}

func TestDeviceFlow_Authorize_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/device/code" {
			writeDeviceCode(t, w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "authorization_pending"})
	}))
	defer server.Close()

	f := newTestDeviceFlow(server)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	_, err := f.Authorize(ctx, nil)
	if !errors.Is(err, ErrAuthCancelled) {
		t.Fatalf("Authorize() error = %v, want ErrAuthCancelled", err)
	}
}

func TestDeviceFlow_Authorize_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/device/code" {
			writeDeviceCode(t, w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deviceTokenResponse{Error: "authorization_pending"})
	}))
	defer server.Close()

	f := newTestDeviceFlow(server)
	f.MaxWait = 100 * time.Millisecond

	_, err := f.Authorize(t.Context(), nil)
	var flowErr *DeviceFlowError
	if !errors.As(err, &flowErr) || flowErr.Code != "timeout" {
		t.Fatalf("Authorize() error = %v, want timeout DeviceFlowError", err)
	}
}
