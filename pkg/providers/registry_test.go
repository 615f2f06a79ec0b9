// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package providers

import (
	"errors"
	"testing"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
)

func TestRegistry_ConfigureAll_SelectsDefaultProvider(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		DefaultProvider: "anthropic",
		Providers: map[string]config.ProviderConfig{
			"openai":    {Type: config.ProviderOpenAI, APIKey: "sk-1", Enabled: true},
			"anthropic": {Type: config.ProviderAnthropic, APIKey: "sk-2", Enabled: true},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	p, err := r.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if p.ID() != "anthropic" {
		t.Fatalf("current id = %q, want anthropic", p.ID())
	}
}

func TestRegistry_ConfigureAll_SkipsDisabled(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: config.ProviderOpenAI, APIKey: "sk-1", Enabled: false},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	p, _ := r.Get("openai")
	if p.IsConfigured() {
		t.Fatal("disabled provider must not be configured")
	}
}

func TestRegistry_ConfigureAll_PreservesAuthenticatedInstance(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: config.ProviderOpenAI, APIKey: "sk-live", Model: "gpt-4o", Enabled: true},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	p, _ := r.Get("openai")
	before := p.(*OpenAIProvider)

	// Reload with a stale empty key but a new model. The instance must
	// survive, keep its credentials, and pick up only the model change.
	cfg.Providers["openai"] = config.ProviderConfig{
		Type: config.ProviderOpenAI, APIKey: "", Model: "gpt-4o-mini", Enabled: true,
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() reload error = %v", err)
	}

	after, _ := r.Get("openai")
	if after.(*OpenAIProvider) != before {
		t.Fatal("reload replaced the provider instance")
	}
	if !after.IsAuthenticated() {
		t.Fatal("reload dropped live credentials")
	}
	if after.CurrentModel() != "gpt-4o-mini" {
		t.Fatalf("model = %q, want gpt-4o-mini", after.CurrentModel())
	}
}

func TestRegistry_ConfigureAll_MergesEndpointOntoAuthenticated(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {Type: config.ProviderOpenAI, APIKey: "sk-live", Enabled: true},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	// Reload with a stale empty key but a new endpoint. The merge must
	// apply the endpoint without dropping the live credentials.
	cfg.Providers["openai"] = config.ProviderConfig{
		Type: config.ProviderOpenAI, Endpoint: "https://proxy.internal/v1/", Enabled: true,
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() reload error = %v", err)
	}

	p, _ := r.Get("openai")
	if !p.IsAuthenticated() {
		t.Fatal("reload dropped live credentials")
	}
	if got := p.(*OpenAIProvider).endpoint; got != "https://proxy.internal/v1" {
		t.Fatalf("endpoint = %q, want the proxy URL with the trailing slash trimmed", got)
	}
}

func TestRegistry_Fallback_SkipsCredentiallessCopilot(t *testing.T) {
	r := NewRegistry()
	// Point the copilot adapter at an empty credential store so the test
	// does not depend on the machine's real auth file.
	r.providers["github-copilot"] = newTestCopilotProvider(t, "", "")

	if err := r.ConfigureAll(&config.Config{}); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	p, err := r.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	// With no keys anywhere only the local daemon adapter qualifies.
	if p.ID() != "ollama" {
		t.Fatalf("fallback selected %q, want ollama", p.ID())
	}
}

func TestRegistry_ConfigureAll_CreatesCustomIDEntries(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"work-openai": {Type: config.ProviderOpenAI, APIKey: "sk-work", Enabled: true},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	p, ok := r.Get("work-openai")
	if !ok {
		t.Fatal("custom-id provider was not created")
	}
	if !p.IsAuthenticated() {
		t.Fatal("custom-id provider was not configured")
	}
}

func TestRegistry_Current_NoProviders(t *testing.T) {
	r := NewRegistry()
	_, err := r.Current()
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Fatalf("Current() error = %v, want ErrNoProviderConfigured", err)
	}
}

func TestRegistry_SetCurrent_UnknownID(t *testing.T) {
	r := NewRegistry()
	if err := r.SetCurrent("nope"); err == nil {
		t.Fatal("SetCurrent with unknown id should fail")
	}
	if err := r.SetCurrent("ollama"); err != nil {
		t.Fatalf("SetCurrent(ollama) error = %v", err)
	}
}

func TestRegistry_Available_OnlyAuthenticated(t *testing.T) {
	r := NewRegistry()
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai":    {Type: config.ProviderOpenAI, APIKey: "sk-1", Enabled: true},
			"anthropic": {Type: config.ProviderAnthropic, Enabled: true},
		},
	}
	if err := r.ConfigureAll(cfg); err != nil {
		t.Fatalf("ConfigureAll() error = %v", err)
	}

	ids := map[string]bool{}
	for _, p := range r.Available() {
		ids[p.ID()] = true
	}
	if !ids["openai"] {
		t.Fatal("openai with a key should be available")
	}
	if ids["anthropic"] {
		t.Fatal("anthropic without a key should not be available")
	}
	// Ollama needs no key at all.
	if !ids["ollama"] {
		t.Fatal("ollama should always be available")
	}
}
