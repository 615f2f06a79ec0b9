// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package mcp

import "net/http"

// headerTransport wraps an http.RoundTripper to inject custom headers
// on every request to an HTTP MCP server.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range t.headers {
		cloned.Header.Set(k, v)
	}
	return t.base.RoundTrip(cloned)
}
