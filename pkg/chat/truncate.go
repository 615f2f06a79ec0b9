// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package chat

import "fmt"

const (
	// modelResultLimit bounds what a tool result occupies in the provider
	// context window.
	modelResultLimit = 30000
	// storedResultLimit bounds what a tool result occupies in the database.
	storedResultLimit = 500

	titleLimit = 50
)

// The limits count characters, not bytes, so a multi-byte rune is never
// cut in half at the boundary.

// TruncateForModel caps a tool result before it joins the provider
// transcript.
func TruncateForModel(s string) string {
	r := []rune(s)
	if len(r) <= modelResultLimit {
		return s
	}
	return string(r[:modelResultLimit]) + "\n... [truncated]"
}

// TruncateForStorage caps a tool result before persistence, recording
// the original size so the cut is visible later.
func TruncateForStorage(s string) string {
	r := []rune(s)
	if len(r) <= storedResultLimit {
		return s
	}
	return fmt.Sprintf("%s\n... (%d chars total)", string(r[:storedResultLimit]), len(r))
}

// DeriveTitle turns the first user message into a conversation title.
func DeriveTitle(text string) string {
	r := []rune(text)
	if len(r) <= titleLimit {
		return text
	}
	return string(r[:titleLimit]) + "..."
}
