// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package chat

import (
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
	"github.com/clatonhendricks/MCPDeskClient/pkg/store"
)

// historyFromRows lifts persisted rows into provider messages. Assistant
// tool calls are stored one row per call, so each row becomes an
// assistant message carrying a single ToolCall; NormalizeHistory then
// regroups them.
func historyFromRows(rows []*store.Message) []providers.Message {
	out := make([]providers.Message, 0, len(rows))
	for _, row := range rows {
		msg := providers.Message{
			Role:       row.Role,
			Content:    row.Content,
			ToolCallID: row.ToolCallID,
		}
		if row.Role == providers.RoleTool && row.ToolResult != "" {
			// The model-facing copy is larger than the display copy.
			msg.Content = row.ToolResult
		}
		if row.Role == providers.RoleAssistant && row.ToolName != "" {
			msg.ToolCalls = []providers.ToolCall{{
				ID:        row.ToolCallID,
				Name:      row.ToolName,
				Arguments: row.ToolArguments,
			}}
			msg.ToolCallID = ""
		}
		out = append(out, msg)
	}
	return NormalizeHistory(out)
}

// NormalizeHistory rebuilds well-formed tool-call turns from a flattened
// transcript. Consecutive assistant messages carrying tool calls merge
// into one assistant message with the calls in their original order and
// empty text content; the regrouped turn exists to anchor its calls, not
// to replay interim commentary. Applying it twice is a no-op. Orphaned
// tool results (no preceding assistant call with a matching id) are
// kept; providers are more tolerant of an extra result than of a
// silently shortened transcript.
func NormalizeHistory(messages []providers.Message) []providers.Message {
	var out []providers.Message
	known := make(map[string]bool)

	for i := 0; i < len(messages); i++ {
		msg := messages[i]

		if msg.Role == providers.RoleAssistant && len(msg.ToolCalls) > 0 {
			merged := providers.Message{
				Role:      providers.RoleAssistant,
				ToolCalls: append([]providers.ToolCall(nil), msg.ToolCalls...),
			}
			for i+1 < len(messages) &&
				messages[i+1].Role == providers.RoleAssistant &&
				len(messages[i+1].ToolCalls) > 0 {
				i++
				merged.ToolCalls = append(merged.ToolCalls, messages[i].ToolCalls...)
			}
			for _, tc := range merged.ToolCalls {
				known[tc.ID] = true
			}
			out = append(out, merged)
			continue
		}

		if msg.Role == providers.RoleTool && !known[msg.ToolCallID] {
			logger.WarnCF("chat", "Orphaned tool result in history", map[string]any{
				"tool_call_id": msg.ToolCallID,
			})
		}
		out = append(out, msg)
	}
	return out
}
