package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifestMergesMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifestFile(t, dir, "search.json5", `{
		"brave": { transport: "stdio", command: "brave-mcp", args: ["--stdio"] },
	}`)
	writeManifestFile(t, dir, "files.json", `{
		"fs": {"transport": "sse", "url": "http://localhost:9000/sse"}
	}`)

	manifest, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest) != 2 {
		t.Fatalf("expected 2 servers, got %d: %+v", len(manifest), manifest)
	}
	if manifest["brave"].Command != "brave-mcp" {
		t.Fatalf("unexpected brave entry: %+v", manifest["brave"])
	}
	if manifest["fs"].URL != "http://localhost:9000/sse" {
		t.Fatalf("unexpected fs entry: %+v", manifest["fs"])
	}
}

func TestLoadManifestRejectsDuplicateServerNames(t *testing.T) {
	dir := t.TempDir()
	writeManifestFile(t, dir, "a.json", `{"shared": {"transport": "stdio", "command": "one"}}`)
	writeManifestFile(t, dir, "b.json", `{"shared": {"transport": "stdio", "command": "two"}}`)

	if _, err := LoadManifest(dir); err == nil {
		t.Fatal("expected an error for a server name defined in two files")
	}
}

func TestLoadManifestMissingDirIsEmpty(t *testing.T) {
	manifest, err := LoadManifest(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest) != 0 {
		t.Fatalf("expected empty manifest, got %+v", manifest)
	}
}

func TestToServerConfigsDefaultsEnabledTrue(t *testing.T) {
	manifest := Manifest{
		"a": {Transport: "stdio", Command: "a-mcp"},
	}
	out := manifest.ToServerConfigs()
	if !out["a"].Enabled {
		t.Fatal("expected server with no explicit enabled flag to default to enabled")
	}
}

func TestToServerConfigsHonorsExplicitDisabled(t *testing.T) {
	disabled := false
	manifest := Manifest{
		"a": {Transport: "stdio", Command: "a-mcp", Enabled: &disabled},
	}
	out := manifest.ToServerConfigs()
	if out["a"].Enabled {
		t.Fatal("expected explicit enabled:false to be honored")
	}
}
