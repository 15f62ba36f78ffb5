package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:7777" {
		t.Fatalf("Listen = %q, want default", cfg.Listen)
	}
	if cfg.LockDebounceMS != 200 {
		t.Fatalf("LockDebounceMS = %d, want 200", cfg.LockDebounceMS)
	}
	if cfg.WorkstreamDBPath != filepath.Join(dir, "workstreams.db") {
		t.Fatalf("WorkstreamDBPath = %q, not rooted at dataDir", cfg.WorkstreamDBPath)
	}
}

func TestLoadConfigReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	toml := "listen = \"0.0.0.0:9999\"\nagent_binary = \"/usr/local/bin/claude\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Fatalf("Listen = %q, want file value", cfg.Listen)
	}
	if cfg.AgentBinary != "/usr/local/bin/claude" {
		t.Fatalf("AgentBinary = %q, want file value", cfg.AgentBinary)
	}
	// unset fields still fall back to defaults
	if cfg.LockDebounceMS != 200 {
		t.Fatalf("LockDebounceMS = %d, want default 200", cfg.LockDebounceMS)
	}
}

func TestEnvOverridesWinOverFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	toml := "listen = \"0.0.0.0:9999\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VOICED_LISTEN", "10.0.0.1:1111")
	t.Setenv("VOICED_AGENT_BINARY", "/opt/claude")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "10.0.0.1:1111" {
		t.Fatalf("Listen = %q, want env override", cfg.Listen)
	}
	if cfg.AgentBinary != "/opt/claude" {
		t.Fatalf("AgentBinary = %q, want env override", cfg.AgentBinary)
	}
}
