// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by Chat when a provider lacks usable
// credentials. No network call is attempted.
var ErrNotConfigured = errors.New("provider is not configured")

// ErrNoProviderConfigured is returned by the registry when no provider is
// selected or the selected provider cannot take requests.
var ErrNoProviderConfigured = errors.New("no LLM provider is configured")

// UpstreamError carries a non-2xx provider response.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

func newUpstreamError(provider string, status int, body []byte) *UpstreamError {
	return &UpstreamError{Provider: provider, Status: status, Body: string(body)}
}
