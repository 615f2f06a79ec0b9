// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExchangeCopilotSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %q, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "token gho_test" {
			t.Fatalf("Authorization = %q, want token gho_test", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"token":"copilot-session-token",
			"expires_at":%d,
			"endpoints":{"api":"https://api.individual.githubcopilot.com/"}
		}`, time.Now().Add(30*time.Minute).Unix())
	}))
	defer server.Close()

	sess, err := ExchangeCopilotSession(t.Context(), server.Client(), "gho_test", server.URL)
	if err != nil {
		t.Fatalf("ExchangeCopilotSession() error = %v", err)
	}
	if sess.Token != "copilot-session-token" {
		t.Fatalf("Token = %q", sess.Token)
	}
	if sess.Endpoint != "https://api.individual.githubcopilot.com" {
		t.Fatalf("Endpoint = %q", sess.Endpoint)
	}
	if !sess.Valid() {
		t.Fatalf("session should be valid with 30m left")
	}
}

func TestExchangeCopilotSession_NoEntitlement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"no copilot access"}`))
	}))
	defer server.Close()

	_, err := ExchangeCopilotSession(t.Context(), server.Client(), "gho_test", server.URL)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("error = %v, want HTTP status in message", err)
	}
}

func TestCopilotSession_ValidAppliesExpiryMargin(t *testing.T) {
	sess := &CopilotSession{
		Token:     "tok",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	// One minute left is inside the two minute refresh margin.
	if sess.Valid() {
		t.Fatal("session within expiry margin should not be valid")
	}

	sess.ExpiresAt = time.Now().Add(10 * time.Minute)
	if !sess.Valid() {
		t.Fatal("session with 10m left should be valid")
	}

	var nilSess *CopilotSession
	if nilSess.Valid() {
		t.Fatal("nil session should not be valid")
	}
}

func TestSessionManager_CachesUntilMargin(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"sess-%d","expires_at":%d,"endpoints":{"api":""}}`,
			exchanges, time.Now().Add(30*time.Minute).Unix())
	}))
	defer server.Close()

	m := NewSessionManagerForTest("gho_test", server.URL, server.Client())

	first, err := m.Session(t.Context())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	second, err := m.Session(t.Context())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if exchanges != 1 {
		t.Fatalf("exchanges = %d, want 1", exchanges)
	}
	if first.Token != second.Token {
		t.Fatalf("cached session changed: %q vs %q", first.Token, second.Token)
	}

	m.Invalidate()
	third, err := m.Session(t.Context())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if exchanges != 2 || third.Token == first.Token {
		t.Fatalf("expected fresh session after Invalidate, exchanges = %d", exchanges)
	}
	if third.Endpoint != "https://api.individual.githubcopilot.com" {
		t.Fatalf("empty endpoint should fall back to default, got %q", third.Endpoint)
	}
}
