// Package config loads voiced's daemon configuration from TOML, layered
// with VOICED_*-prefixed environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level daemon configuration loaded from config.toml.
type Config struct {
	Listen           string `toml:"listen"`             // TCP listen address, e.g. "0.0.0.0:7777"
	WebSocketListen  string `toml:"websocket_listen"`   // separate HTTP/WS listen address, empty disables it
	TranscriptRoot   string `toml:"transcript_root"`    // the projects dir: holds <mangled>/<uuid>.jsonl
	AgentBinary      string `toml:"agent_binary"`       // path to the agent executable
	RecipeDir        string `toml:"recipe_dir"`         // extra recipe YAML files, beyond the bundled default
	WorkstreamDBPath string `toml:"workstream_db_path"` // sqlite file
	KeyFile          string `toml:"key_file"`
	LockDebounceMS   int    `toml:"lock_debounce_ms"` // replication tailer debounce, default 200
	AgentTimeoutSec  int    `toml:"agent_timeout_sec"` // default 24h
}

// defaults fills in every value a zero-value Config is missing, rooted at
// dataDir (typically $HOME/.voiced).
func defaults(dataDir string) Config {
	return Config{
		Listen:           "127.0.0.1:7777",
		WebSocketListen:  "127.0.0.1:7778",
		TranscriptRoot:   filepath.Join(dataDir, "projects"),
		AgentBinary:      "claude",
		RecipeDir:        filepath.Join(dataDir, "recipes"),
		WorkstreamDBPath: filepath.Join(dataDir, "workstreams.db"),
		KeyFile:          filepath.Join(dataDir, "key"),
		LockDebounceMS:   200,
		AgentTimeoutSec:  24 * 60 * 60,
	}
}

// LoadConfig reads config.toml from dataDir (if present), applies
// VOICED_*-prefixed environment variable overrides, and fills in defaults
// for anything left unset.
func LoadConfig(dataDir string) (*Config, error) {
	cfg := defaults(dataDir)

	path := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICED_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("VOICED_WEBSOCKET_LISTEN"); v != "" {
		cfg.WebSocketListen = v
	}
	if v := os.Getenv("VOICED_TRANSCRIPT_ROOT"); v != "" {
		cfg.TranscriptRoot = v
	}
	if v := os.Getenv("VOICED_AGENT_BINARY"); v != "" {
		cfg.AgentBinary = v
	}
	if v := os.Getenv("VOICED_RECIPE_DIR"); v != "" {
		cfg.RecipeDir = v
	}
	if v := os.Getenv("VOICED_KEY_FILE"); v != "" {
		cfg.KeyFile = v
	}
}
