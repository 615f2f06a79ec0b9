// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package mcp

import "strings"

// toolNameSeparator joins server and tool into the provider-facing
// function name. Server names must not contain it; tool names may.
const toolNameSeparator = "__"

// QualifyToolName builds the name offered to providers, namespaced by
// the owning server.
func QualifyToolName(serverName, toolName string) string {
	return serverName + toolNameSeparator + toolName
}

// SplitToolName recovers the server and tool from a qualified name.
// Splitting happens on the first separator only, so tool names that
// themselves contain "__" survive the round trip.
func SplitToolName(qualified string) (serverName, toolName string, ok bool) {
	serverName, toolName, ok = strings.Cut(qualified, toolNameSeparator)
	if !ok || serverName == "" || toolName == "" {
		return "", "", false
	}
	return serverName, toolName, true
}
