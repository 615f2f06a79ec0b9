// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clatonhendricks/MCPDeskClient/pkg/config"
	"github.com/clatonhendricks/MCPDeskClient/pkg/logger"
	"github.com/clatonhendricks/MCPDeskClient/pkg/providers"
)

const (
	clientName       = "mcpdesk"
	clientVersion    = "1.0.0"
	idleTimeout      = 5 * time.Minute
	reaperInterval   = 30 * time.Second
	maxCrashesPerMin = 3
)

// ServerSummary describes a configured server without starting it.
type ServerSummary struct {
	Name    string
	Status  string
	Tools   int
	IsHTTP  bool
	Command string
}

// serverInstance holds one connected MCP session.
type serverInstance struct {
	mu       sync.Mutex
	session  *sdkmcp.ClientSession
	done     chan struct{} // closed when the session ends
	tools    []*sdkmcp.Tool
	lastUsed time.Time
	crashes  []time.Time
	isHTTP   bool
}

// Manager owns the lifecycle of all configured MCP servers. Servers
// start lazily on first use and idle sessions are reaped in the
// background.
type Manager struct {
	mu      sync.RWMutex
	configs map[string]config.MCPServerConfig
	servers map[string]*serverInstance
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewManager(configs map[string]config.MCPServerConfig) *Manager {
	if configs == nil {
		configs = make(map[string]config.MCPServerConfig)
	}

	m := &Manager{
		configs: configs,
		servers: make(map[string]*serverInstance),
		stopCh:  make(chan struct{}),
	}

	m.wg.Add(1)
	go m.idleReaper()

	return m
}

// ListServers reports configured servers and whether each is running.
func (m *Manager) ListServers() []ServerSummary {
	m.mu.RLock()
	names := make([]string, 0, len(m.configs))
	for name, cfg := range m.configs {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)

	var result []ServerSummary
	for _, name := range names {
		m.mu.RLock()
		cfg := m.configs[name]
		inst := m.servers[name]
		m.mu.RUnlock()

		summary := ServerSummary{
			Name:    name,
			Status:  "stopped",
			IsHTTP:  cfg.URL != "",
			Command: cfg.Command,
		}
		if inst != nil {
			inst.mu.Lock()
			if inst.session != nil {
				summary.Status = "running"
				summary.Tools = len(inst.tools)
			}
			inst.mu.Unlock()
		}
		result = append(result, summary)
	}
	return result
}

// AllTools aggregates tool definitions from every enabled server under
// qualified names. Servers that fail to start are logged and skipped so
// one broken server never hides the rest.
func (m *Manager) AllTools(ctx context.Context) []providers.ToolDefinition {
	m.mu.RLock()
	names := make([]string, 0, len(m.configs))
	for name, cfg := range m.configs {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)

	var defs []providers.ToolDefinition
	for _, name := range names {
		tools, err := m.serverTools(ctx, name)
		if err != nil {
			logger.WarnCF("mcp", "Skipping unavailable server", map[string]any{
				"server": name,
				"error":  err.Error(),
			})
			continue
		}
		for _, tool := range tools {
			if tool == nil || strings.TrimSpace(tool.Name) == "" {
				continue
			}
			defs = append(defs, providers.ToolDefinition{
				Name:             QualifyToolName(name, tool.Name),
				Description:      tool.Description,
				ParametersSchema: normalizeInputSchema(tool.InputSchema),
			})
		}
	}
	return defs
}

// serverTools returns the tool list for one server, starting it if needed.
func (m *Manager) serverTools(ctx context.Context, serverName string) ([]*sdkmcp.Tool, error) {
	inst, err := m.ensureRunning(ctx, serverName)
	if err != nil {
		return nil, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if len(inst.tools) > 0 {
		inst.lastUsed = time.Now()
		return inst.tools, nil
	}

	result, err := inst.session.ListTools(ctx, nil)
	if err != nil {
		m.handleSessionError(serverName, inst, err)
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	inst.tools = result.Tools
	inst.lastUsed = time.Now()

	logger.InfoCF("mcp", fmt.Sprintf("Server %q: loaded %d tools", serverName, len(result.Tools)),
		map[string]any{"server": serverName, "tools": len(result.Tools)})

	return result.Tools, nil
}

// CallTool routes a qualified tool invocation to its server. argsJSON is
// the raw argument text from the model; invalid JSON becomes an error
// result rather than a crash.
func (m *Manager) CallTool(ctx context.Context, qualifiedName, argsJSON string) (string, error) {
	serverName, toolName, ok := SplitToolName(qualifiedName)
	if !ok {
		return "", fmt.Errorf("malformed tool name: %q", qualifiedName)
	}

	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("tool %s: arguments are not valid JSON: %w", qualifiedName, err)
		}
	}

	inst, err := m.ensureRunning(ctx, serverName)
	if err != nil {
		return "", err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.lastUsed = time.Now()

	result, err := inst.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		m.handleSessionError(serverName, inst, err)
		return "", fmt.Errorf("tools/call %s: %w", toolName, err)
	}

	text := extractText(result)
	if result.IsError {
		return "", fmt.Errorf("tool error: %s", text)
	}
	return text, nil
}

// Stop shuts down all running servers and the idle reaper.
func (m *Manager) Stop() {
	close(m.stopCh)

	m.mu.Lock()
	for name, inst := range m.servers {
		inst.mu.Lock()
		if inst.session != nil {
			logger.InfoCF("mcp", fmt.Sprintf("Stopping server %q", name), nil)
			inst.session.Close()
			inst.session = nil
		}
		inst.mu.Unlock()
	}
	m.servers = make(map[string]*serverInstance)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) ensureRunning(ctx context.Context, serverName string) (*serverInstance, error) {
	m.mu.RLock()
	cfg, ok := m.configs[serverName]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown MCP server: %q", serverName)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("MCP server %q is disabled", serverName)
	}

	m.mu.Lock()
	inst, exists := m.servers[serverName]
	if !exists {
		inst = &serverInstance{}
		m.servers[serverName] = inst
	}
	m.mu.Unlock()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.session != nil {
		select {
		case <-inst.done:
			logger.WarnCF("mcp", fmt.Sprintf("Server %q session closed, restarting", serverName), nil)
			inst.session = nil
			inst.tools = nil
		default:
			return inst, nil
		}
	}

	// Crash rate limit: max 3 in 60 seconds.
	now := time.Now()
	var recent []time.Time
	for _, t := range inst.crashes {
		if now.Sub(t) < time.Minute {
			recent = append(recent, t)
		}
	}
	inst.crashes = recent
	if len(recent) >= maxCrashesPerMin {
		return nil, fmt.Errorf("MCP server %q crashed too frequently (%d times in 60s)", serverName, maxCrashesPerMin)
	}

	client := sdkmcp.NewClient(
		&sdkmcp.Implementation{Name: clientName, Version: clientVersion},
		nil,
	)

	var transport sdkmcp.Transport
	if cfg.URL != "" {
		httpClient := &http.Client{}
		if len(cfg.Headers) > 0 {
			httpClient.Transport = &headerTransport{
				headers: cfg.Headers,
				base:    http.DefaultTransport,
			}
		}
		transport = &sdkmcp.StreamableClientTransport{
			Endpoint:             cfg.URL,
			HTTPClient:           httpClient,
			DisableStandaloneSSE: true,
		}
		inst.isHTTP = true

		logger.InfoCF("mcp", fmt.Sprintf("Connecting to HTTP server %q: %s", serverName, cfg.URL),
			map[string]any{"server": serverName, "url": cfg.URL})
	} else {
		var env []string
		if len(cfg.Env) > 0 {
			env = os.Environ()
			for k, v := range cfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
		}

		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(env) > 0 {
			cmd.Env = env
		}
		transport = &sdkmcp.CommandTransport{Command: cmd}

		logger.InfoCF("mcp", fmt.Sprintf("Starting server %q: %s %s", serverName, cfg.Command, strings.Join(cfg.Args, " ")),
			map[string]any{"server": serverName, "command": cfg.Command})
	}

	// Connect performs the full MCP handshake.
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		inst.crashes = append(inst.crashes, now)
		return nil, fmt.Errorf("connect MCP server %q: %w", serverName, err)
	}

	inst.session = session
	inst.lastUsed = now
	inst.tools = nil

	inst.done = make(chan struct{})
	go func() {
		session.Wait()
		close(inst.done)
	}()

	initResult := session.InitializeResult()
	logger.InfoCF("mcp", fmt.Sprintf("Server %q initialized (protocol: %s, server: %s %s)",
		serverName, initResult.ProtocolVersion, initResult.ServerInfo.Name, initResult.ServerInfo.Version),
		map[string]any{"server": serverName, "protocol": initResult.ProtocolVersion})

	return inst, nil
}

// handleSessionError records a crash and drops the session on transport errors.
func (m *Manager) handleSessionError(serverName string, inst *serverInstance, err error) {
	errStr := err.Error()
	isTransport := strings.Contains(errStr, "write") || strings.Contains(errStr, "read") ||
		strings.Contains(errStr, "pipe") || strings.Contains(errStr, "process") ||
		strings.Contains(errStr, "http") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "EOF")

	if isTransport {
		logger.WarnCF("mcp", fmt.Sprintf("Server %q transport error, marking for restart: %v", serverName, err), nil)
		if inst.session != nil {
			inst.session.Close()
			inst.session = nil
		}
		inst.tools = nil
		inst.crashes = append(inst.crashes, time.Now())
	}
}

func (m *Manager) idleReaper() {
	defer m.wg.Done()

	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapIdleSessions()
		}
	}
}

func (m *Manager) reapIdleSessions() {
	m.mu.RLock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		inst, ok := m.servers[name]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		inst.mu.Lock()
		if inst.session != nil && time.Since(inst.lastUsed) > idleTimeout {
			logger.InfoCF("mcp", fmt.Sprintf("Stopping idle server %q (idle %v)",
				name, time.Since(inst.lastUsed).Round(time.Second)), nil)
			inst.session.Close()
			inst.session = nil
			inst.tools = nil
		}
		inst.mu.Unlock()
	}
}

// extractText flattens SDK content blocks into a single string.
func extractText(result *sdkmcp.CallToolResult) string {
	var parts []string

	for _, content := range result.Content {
		switch c := content.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, c.Text)
		case *sdkmcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s, %d bytes]", c.MIMEType, len(c.Data)))
		case *sdkmcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio: %s, %d bytes]", c.MIMEType, len(c.Data)))
		case *sdkmcp.ResourceLink:
			parts = append(parts, fmt.Sprintf("[resource_link: %s]", c.URI))
		case *sdkmcp.EmbeddedResource:
			if c.Resource != nil {
				if c.Resource.Text != "" {
					parts = append(parts, c.Resource.Text)
				} else if len(c.Resource.Blob) > 0 {
					parts = append(parts, fmt.Sprintf("[embedded resource: %s, %s, %d bytes]",
						c.Resource.URI, c.Resource.MIMEType, len(c.Resource.Blob)))
				} else {
					parts = append(parts, fmt.Sprintf("[embedded resource: %s]", c.Resource.URI))
				}
			}
		}
	}

	if result.StructuredContent != nil {
		if data, err := json.MarshalIndent(result.StructuredContent, "", "  "); err == nil {
			parts = append(parts, string(data))
		}
	}

	if len(parts) == 0 {
		return "(no content)"
	}
	return strings.Join(parts, "\n")
}

// normalizeInputSchema coerces whatever schema the server sent into the
// object-shaped map providers expect.
func normalizeInputSchema(schema any) map[string]any {
	fallback := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}

	if schema == nil {
		return fallback
	}

	var out map[string]any
	switch v := schema.(type) {
	case map[string]any:
		out = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fallback
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fallback
		}
	}

	if out == nil {
		return fallback
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	if out["type"] == "object" {
		if _, ok := out["properties"]; !ok {
			out["properties"] = map[string]any{}
		}
	}
	return out
}
