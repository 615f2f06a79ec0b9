// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/clatonhendricks/MCPDeskClient/pkg/utils"
)

// ProviderType identifies which adapter family a provider entry uses.
type ProviderType string

const (
	ProviderOpenAI        ProviderType = "openai"
	ProviderAnthropic     ProviderType = "anthropic"
	ProviderOllama        ProviderType = "ollama"
	ProviderGitHubCopilot ProviderType = "github-copilot"
)

// ProviderConfig is one configured LLM backend.
type ProviderConfig struct {
	DisplayName string       `json:"display_name,omitempty"`
	Type        ProviderType `json:"type"`
	APIKey      string       `json:"api_key,omitempty"`
	Model       string       `json:"model,omitempty"`
	Endpoint    string       `json:"endpoint,omitempty"`
	Enabled     bool         `json:"enabled"`
}

// MCPServerConfig describes one tool server, stdio or HTTP.
type MCPServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Enabled bool              `json:"enabled"`
}

type Config struct {
	Providers       map[string]ProviderConfig  `json:"providers"`
	MCPServers      map[string]MCPServerConfig `json:"mcp_servers"`
	DefaultProvider string                     `json:"default_provider,omitempty" env:"MCPDESK_DEFAULT_PROVIDER"`
	DatabasePath    string                     `json:"database_path,omitempty" env:"MCPDESK_DB_PATH"`
	LogFile         string                     `json:"log_file,omitempty" env:"MCPDESK_LOG_FILE"`
	LogLevel        string                     `json:"log_level,omitempty" env:"MCPDESK_LOG_LEVEL"`
}

func DefaultConfig() *Config {
	return &Config{
		Providers:  make(map[string]ProviderConfig),
		MCPServers: make(map[string]MCPServerConfig),
	}
}

// DefaultPath returns ~/.mcpdesk/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".mcpdesk", "config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if envErr := env.Parse(cfg); envErr != nil {
				return nil, envErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	// Config may hold API keys, so owner-only and atomic.
	return utils.WriteFileAtomic(path, data, 0o600)
}

// ResolveDatabasePath returns the configured database path or the default
// next to the config file.
func (c *Config) ResolveDatabasePath(configPath string) string {
	if strings.TrimSpace(c.DatabasePath) != "" {
		return c.DatabasePath
	}
	return filepath.Join(filepath.Dir(configPath), "conversations.db")
}
