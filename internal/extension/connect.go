package extension

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"
)

// connectServer de-duplicates concurrent connect attempts for the same
// server name — a slow connect still in flight when the manifest watcher
// fires a second reload would otherwise race two goroutines through
// doConnectServer for the same cfg.Name, each registering its own client
// and tools.
func (m *Manager) connectServer(ctx context.Context, cfg *ServerConfig) error {
	_, err, _ := m.connectGroup.Do(cfg.Name, func() (interface{}, error) {
		return nil, m.doConnectServer(ctx, cfg)
	})
	return err
}

// doConnectServer creates a client for cfg, runs the MCP handshake,
// discovers its tools, bridges each into the registry, and starts health
// monitoring.
func (m *Manager) doConnectServer(ctx context.Context, cfg *ServerConfig) error {
	client, err := createClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.Transport != "stdio" {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "agentrt",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	// Prompts are optional: plenty of MCP servers only expose tools, so a
	// prompts/list failure (including "method not found") just means this
	// server has none, not a connection failure.
	var prompts []mcpgo.Prompt
	if promptsResult, err := client.ListPrompts(ctx, mcpgo.ListPromptsRequest{}); err != nil {
		slog.Debug("extension.server.prompts_unsupported", "server", cfg.Name, "error", err)
	} else {
		prompts = promptsResult.Prompts
	}

	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 60
	}

	ss := &serverState{
		name:       cfg.Name,
		transport:  cfg.Transport,
		client:     client,
		prompts:    prompts,
		timeoutSec: timeoutSec,
	}
	ss.connected.Store(true)

	var limiter *rate.Limiter
	if cfg.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), int(cfg.RateLimitPerSec)+1)
	}

	var registered []string
	for _, mcpTool := range toolsResult.Tools {
		bt := NewBridgeTool(cfg.Name, mcpTool, client, cfg.ToolPrefix, timeoutSec, &ss.connected, limiter)
		if _, exists := m.registry.Get(bt.Name()); exists {
			slog.Warn("extension.tool.name_collision", "server", cfg.Name, "tool", bt.Name())
			continue
		}
		m.registry.Register(bt)
		registered = append(registered, bt.Name())
	}
	ss.toolNames = registered

	if len(registered) > 0 {
		m.registry.RegisterToolGroup("mcp:"+cfg.Name, registered)
		m.updateMCPGroup()
	}

	hctx, hcancel := context.WithCancel(context.Background())
	ss.cancel = hcancel
	go m.healthLoop(hctx, ss)

	m.mu.Lock()
	m.servers[cfg.Name] = ss
	m.mu.Unlock()

	slog.Info("extension.server.connected", "server", cfg.Name, "transport", cfg.Transport, "tools", len(registered))
	return nil
}

func createClient(cfg *ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		return mcpclient.NewStdioMCPClient(cfg.Command, mapToEnvSlice(cfg.Env), cfg.Args...)

	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)

	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %q", cfg.Transport)
	}
}

// healthLoop pings the server on an interval, marking it unhealthy and
// kicking off reconnection attempts when the ping fails for a reason other
// than the server simply not implementing ping.
func (m *Manager) healthLoop(ctx context.Context, ss *serverState) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ss.client.Ping(ctx); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "method not found") {
					ss.connected.Store(true)
					ss.mu.Lock()
					ss.reconnAttempts = 0
					ss.lastErr = ""
					ss.mu.Unlock()
					continue
				}
				ss.connected.Store(false)
				ss.mu.Lock()
				ss.lastErr = err.Error()
				ss.mu.Unlock()
				slog.Warn("extension.server.health_failed", "server", ss.name, "error", err)
				m.tryReconnect(ctx, ss)
			} else {
				ss.connected.Store(true)
				ss.mu.Lock()
				ss.reconnAttempts = 0
				ss.lastErr = ""
				ss.mu.Unlock()
			}
		}
	}
}

// tryReconnect re-pings after an exponential backoff, doubling from
// initialBackoff up to maxBackoff, giving up after maxReconnectAttempts.
func (m *Manager) tryReconnect(ctx context.Context, ss *serverState) {
	ss.mu.Lock()
	if ss.reconnAttempts >= maxReconnectAttempts {
		ss.lastErr = fmt.Sprintf("max reconnect attempts (%d) reached", maxReconnectAttempts)
		ss.mu.Unlock()
		slog.Error("extension.server.reconnect_exhausted", "server", ss.name)
		return
	}
	ss.reconnAttempts++
	attempt := ss.reconnAttempts
	ss.mu.Unlock()

	backoff := initialBackoff * time.Duration(1<<(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	slog.Info("extension.server.reconnecting", "server", ss.name, "attempt", attempt, "backoff", backoff)

	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	if err := ss.client.Ping(ctx); err == nil {
		ss.connected.Store(true)
		ss.mu.Lock()
		ss.reconnAttempts = 0
		ss.lastErr = ""
		ss.mu.Unlock()
		slog.Info("extension.server.reconnected", "server", ss.name)
	}
}
