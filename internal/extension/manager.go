// Package extension connects to MCP servers and bridges their tools,
// resources and prompts into the runtime's tool registry.
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

const (
	healthCheckInterval  = 30 * time.Second
	initialBackoff       = 2 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
)

// Status reports the connection status of one MCP server.
type Status struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// serverState tracks a single MCP server connection and its bridged tools.
type serverState struct {
	name       string
	transport  string
	client     *mcpclient.Client
	connected  atomic.Bool
	toolNames  []string
	prompts    []mcpgo.Prompt
	timeoutSec int
	cancel     context.CancelFunc

	mu             sync.Mutex
	reconnAttempts int
	lastErr        string
}

// Manager connects to every enabled ServerConfig and keeps the tool
// registry in sync with each server's live tool set, reconnecting on
// transport failure with exponential backoff.
type Manager struct {
	mu       sync.RWMutex
	servers  map[string]*serverState
	registry *tool.Registry
	configs  map[string]*ServerConfig

	connectGroup singleflight.Group
}

func NewManager(registry *tool.Registry, configs map[string]*ServerConfig) *Manager {
	return &Manager{
		servers:  make(map[string]*serverState),
		registry: registry,
		configs:  configs,
	}
}

// Start connects every enabled configured server. Connection failures are
// logged and collected but do not prevent the other servers from starting.
func (m *Manager) Start(ctx context.Context) error {
	var errs []string
	for name, cfg := range m.configs {
		if !cfg.IsEnabled() {
			slog.Info("extension.server.disabled", "server", name)
			continue
		}
		if err := m.connectServer(ctx, cfg); err != nil {
			slog.Warn("extension.server.connect_failed", "server", name, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("some extension servers failed to connect: %s", joinErrors(errs))
	}
	return nil
}

// Stop shuts down every connection and unregisters their bridged tools.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, ss := range m.servers {
		if ss.cancel != nil {
			ss.cancel()
		}
		if ss.client != nil {
			if err := ss.client.Close(); err != nil {
				slog.Debug("extension.server.close_error", "server", name, "error", err)
			}
		}
		for _, toolName := range ss.toolNames {
			m.registry.Unregister(toolName)
		}
		m.registry.UnregisterToolGroup("mcp:" + name)
	}
	m.servers = make(map[string]*serverState)
	m.registry.UnregisterToolGroup("mcp")
}

// Statuses reports the live connection status of every server.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.servers))
	for _, ss := range m.servers {
		ss.mu.Lock()
		lastErr := ss.lastErr
		ss.mu.Unlock()
		out = append(out, Status{
			Name:      ss.name,
			Transport: ss.transport,
			Connected: ss.connected.Load(),
			ToolCount: len(ss.toolNames),
			Error:     lastErr,
		})
	}
	return out
}

// Reload disconnects every current server and reconnects against a new
// config set, used when the extension config file changes on disk.
func (m *Manager) Reload(ctx context.Context, configs map[string]*ServerConfig) error {
	m.unregisterAllTools()

	m.mu.Lock()
	m.configs = configs
	m.mu.Unlock()

	return m.Start(ctx)
}

// ApplyToolFilter restricts serverName's bridged tools to allow (if
// non-empty) minus deny, matching grants configured for that server.
func (m *Manager) ApplyToolFilter(serverName string, allow, deny []string) {
	m.filterTools(serverName, allow, deny)
	m.updateMCPGroup()
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}
