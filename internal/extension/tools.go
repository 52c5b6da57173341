package extension

import "log/slog"

// ToolNames returns every bridged MCP tool name across all connected servers.
func (m *Manager) ToolNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for _, ss := range m.servers {
		names = append(names, ss.toolNames...)
	}
	return names
}

// updateMCPGroup rebuilds the "mcp" registry group with every bridged tool
// name across servers. Must be called with m.mu not held.
func (m *Manager) updateMCPGroup() {
	names := m.ToolNames()
	if len(names) > 0 {
		m.registry.RegisterToolGroup("mcp", names)
	} else {
		m.registry.UnregisterToolGroup("mcp")
	}
}

// unregisterAllTools tears down every server connection and bridged tool,
// used when reloading the full extension set (e.g. on config reload).
func (m *Manager) unregisterAllTools() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, ss := range m.servers {
		if ss.cancel != nil {
			ss.cancel()
		}
		if ss.client != nil {
			_ = ss.client.Close()
		}
		for _, toolName := range ss.toolNames {
			m.registry.Unregister(toolName)
		}
		m.registry.UnregisterToolGroup("mcp:" + name)
		slog.Debug("extension.server.unregistered", "server", name, "tools", len(ss.toolNames))
	}
	m.servers = make(map[string]*serverState)
	m.registry.UnregisterToolGroup("mcp")
}

// filterTools removes bridged tools for serverName that don't satisfy the
// allow/deny lists, keyed by each tool's original (unprefixed) MCP name.
func (m *Manager) filterTools(serverName string, allow, deny []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ss, ok := m.servers[serverName]
	if !ok {
		return
	}

	allowSet := toSet(allow)
	denySet := toSet(deny)

	var kept []string
	for _, toolName := range ss.toolNames {
		t, ok := m.registry.Get(toolName)
		if !ok {
			continue
		}
		bridge, ok := t.(*BridgeTool)
		if !ok {
			kept = append(kept, toolName)
			continue
		}
		orig := bridge.OriginalName()

		if _, denied := denySet[orig]; denied {
			m.registry.Unregister(toolName)
			continue
		}
		if len(allowSet) > 0 {
			if _, allowed := allowSet[orig]; !allowed {
				m.registry.Unregister(toolName)
				continue
			}
		}
		kept = append(kept, toolName)
	}
	ss.toolNames = kept
}
