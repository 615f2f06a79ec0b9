// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
)

// Registry owns all provider instances, keyed by id. Instances are reused
// across re-configuration so that a live interactive session (for example a
// Copilot sign-in) is never clobbered by a stale stored credential.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	currentID string
}

func NewRegistry() *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
	}
	r.providers["openai"] = NewOpenAIProvider()
	r.providers["anthropic"] = NewAnthropicProvider()
	r.providers["ollama"] = NewOllamaProvider()
	r.providers["github-copilot"] = NewCopilotProvider()
	return r
}

// newProviderForType creates a fresh adapter for a config entry whose id is
// not one of the built-in instances.
func newProviderForType(t config.ProviderType) (Provider, error) {
	switch t {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(), nil
	case config.ProviderOllama:
		return NewOllamaProvider(), nil
	case config.ProviderGitHubCopilot:
		return NewCopilotProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %q", t)
	}
}

// ConfigureAll applies the app config to the registry. Existing instances
// are reused; an instance that already holds a live authenticated session is
// only given model/endpoint updates, never a full credential reset.
func (r *Registry) ConfigureAll(cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		provider, ok := r.providers[id]
		if !ok {
			created, err := newProviderForType(pc.Type)
			if err != nil {
				logger.WarnCF("providers", "Skipping provider with unknown type",
					map[string]any{"id": id, "type": string(pc.Type)})
				continue
			}
			provider = created
			r.providers[id] = provider
		}

		if provider.IsAuthenticated() {
			// Merge, don't replace: a freshly obtained interactive token
			// must survive a reload of persisted config.
			if pc.Model != "" {
				provider.SetModel(pc.Model)
			}
			if pc.Endpoint != "" {
				if ep, ok := provider.(interface{ SetEndpoint(string) }); ok {
					ep.SetEndpoint(pc.Endpoint)
				}
			}
			continue
		}
		provider.Configure(pc)
	}

	if cfg.DefaultProvider != "" {
		if _, ok := r.providers[cfg.DefaultProvider]; ok {
			r.currentID = cfg.DefaultProvider
		}
	}
	if r.currentID == "" {
		for _, id := range r.sortedIDsLocked() {
			if r.providers[id].IsConfigured() {
				r.currentID = id
				break
			}
		}
	}

	return nil
}

// Current returns the active provider, or ErrNoProviderConfigured when none
// is selected or the selection has no usable credentials.
func (r *Registry) Current() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.currentID == "" {
		return nil, ErrNoProviderConfigured
	}
	p, ok := r.providers[r.currentID]
	if !ok || !p.IsConfigured() {
		return nil, ErrNoProviderConfigured
	}
	return p, nil
}

func (r *Registry) SetCurrent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[id]; !ok {
		return fmt.Errorf("unknown provider: %q", id)
	}
	r.currentID = id
	return nil
}

func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// All returns every registered provider in id order, regardless of state.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, id := range r.sortedIDsLocked() {
		out = append(out, r.providers[id])
	}
	return out
}

// CurrentID returns the id of the active provider, or "".
func (r *Registry) CurrentID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentID
}

// Available returns all providers holding live credentials, in id order.
func (r *Registry) Available() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	for _, id := range r.sortedIDsLocked() {
		if r.providers[id].IsAuthenticated() {
			out = append(out, r.providers[id])
		}
	}
	return out
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
