// Package config loads the extension manifest — the set of MCP server
// definitions an ExtensionManager connects to — and watches it on disk so
// the manager can reconnect against an edited manifest without a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/agentrt/internal/extension"
)

// ServerManifestEntry is the on-disk shape of one MCP server definition.
// Field names mirror extension.ServerConfig; this type exists only so
// JSON5 comments and trailing commas are tolerated in hand-edited
// manifest files.
type ServerManifestEntry struct {
	Transport       string            `json:"transport"`
	Command         string            `json:"command,omitempty"`
	Args            []string          `json:"args,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	URL             string            `json:"url,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	ToolPrefix      string            `json:"tool_prefix,omitempty"`
	TimeoutSec      int               `json:"timeout_sec,omitempty"`
	RateLimitPerSec float64           `json:"rate_limit_per_sec,omitempty"`
	Enabled         *bool             `json:"enabled,omitempty"` // default true
}

// Manifest is the parsed contents of the manifest directory: server name
// to its definition.
type Manifest map[string]ServerManifestEntry

// LoadManifest reads every *.json5 and *.json file directly inside dir
// and merges them into one Manifest, keyed by server name. A server
// name colliding across files is an error — manifests are meant to be
// split by concern (one file per team/integration), not to override
// each other silently.
func LoadManifest(dir string) (Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return nil, fmt.Errorf("config: read manifest dir %s: %w", dir, err)
	}

	out := make(Manifest)
	names := fileNames(entries)
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasSuffix(name, ".json5") && !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}

		var fileManifest Manifest
		if err := json5.Unmarshal(data, &fileManifest); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		for serverName, entry := range fileManifest {
			if _, exists := out[serverName]; exists {
				return nil, fmt.Errorf("config: server %q defined in more than one manifest file", serverName)
			}
			out[serverName] = entry
		}
	}
	return out, nil
}

func fileNames(entries []os.DirEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// ToServerConfigs converts a Manifest into the map ExtensionManager's
// constructor and Reload expect.
func (m Manifest) ToServerConfigs() map[string]*extension.ServerConfig {
	out := make(map[string]*extension.ServerConfig, len(m))
	for name, entry := range m {
		enabled := entry.Enabled == nil || *entry.Enabled
		out[name] = &extension.ServerConfig{
			Name:            name,
			Transport:       entry.Transport,
			Command:         entry.Command,
			Args:            entry.Args,
			Env:             entry.Env,
			URL:             entry.URL,
			Headers:         entry.Headers,
			ToolPrefix:      entry.ToolPrefix,
			TimeoutSec:      entry.TimeoutSec,
			RateLimitPerSec: entry.RateLimitPerSec,
			Enabled:         enabled,
		}
	}
	return out
}
