// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package main

import (
	"fmt"

	"github.com/clatonhendricks/MCPDeskClient/pkg/chat"
	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
	"github.com/clatonhendricks/MCPDeskClient/pkg/mcp"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
	"github.com/clatonhendricks/MCPDeskClient/pkg/store"
)

// app bundles everything a command needs. Built fresh per invocation.
type app struct {
	cfg      *config.Config
	registry *providers.Registry
	servers  *mcp.Manager
	store    *store.Store
	engine   *chat.Engine
}

// configPath honors --config, falling back to the default location.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}

func newApp() (*app, error) {
	path := configPath()

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.LogLevel != "" && !flagDebug {
		logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	}
	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]any{"error": err.Error()})
		}
	}

	registry := providers.NewRegistry()
	if err := registry.ConfigureAll(cfg); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.ResolveDatabasePath(path))
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}

	servers := mcp.NewManager(cfg.MCPServers)

	engine := chat.NewEngine(registry, servers, st)

	return &app{
		cfg:      cfg,
		registry: registry,
		servers:  servers,
		store:    st,
		engine:   engine,
	}, nil
}

func (a *app) Close() {
	a.servers.Stop()
	if err := a.store.Close(); err != nil {
		logger.WarnCF("main", "Closing store failed", map[string]any{"error": err.Error()})
	}
	logger.DisableFileLogging()
}
