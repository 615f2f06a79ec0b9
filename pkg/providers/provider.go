// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"context"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

// Provider is the capability contract every backend adapter implements.
// The orchestration loop only ever talks to this interface, via the Registry;
// it never sees a concrete adapter.
type Provider interface {
	ID() string
	DisplayName() string

	// IsConfigured reports whether credentials sufficient for a request are
	// present (a static key, or a live or obtainable session token).
	IsConfigured() bool

	// IsAuthenticated reports whether a live credential is held. For most
	// adapters this equals IsConfigured; the Copilot adapter distinguishes
	// the two while a device flow is pending.
	IsAuthenticated() bool

	CurrentModel() string

	// Configure is idempotent. It must not discard an already-authenticated
	// live session when re-invoked for the same identity.
	Configure(cfg config.ProviderConfig)

	// SetModel is a pure state update, no network call.
	SetModel(modelID string)

	// ListModels returns the selectable model catalog. Adapters with a live
	// catalog prefer it and fall back to a static list on any failure, so
	// model selection is never blocked by a transient network error.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Chat performs one round-trip. It fails with ErrNotConfigured when
	// IsConfigured is false, or *UpstreamError on a non-2xx response.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error)
}
