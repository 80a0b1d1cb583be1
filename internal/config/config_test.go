package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(writeConfig(t, ""), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for explicitly specified missing file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8573 {
		t.Errorf("port = %d, want 8573", cfg.Server.Port)
	}
	if cfg.CLI.Path != "claude" {
		t.Errorf("cli path = %q, want claude", cfg.CLI.Path)
	}
	if cfg.CLI.DefaultTimeout() != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", cfg.CLI.DefaultTimeout())
	}
	if cfg.CLI.MaxTimeout() != 10*time.Minute {
		t.Errorf("max timeout = %v, want 10m", cfg.CLI.MaxTimeout())
	}
	if cfg.CLI.ProbeTimeout() != 5*time.Second {
		t.Errorf("probe timeout = %v, want 5s", cfg.CLI.ProbeTimeout())
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.SessionsPerMinute != 20 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9100
cli:
  path: /opt/tools/claude
  default_timeout_ms: 60000
  max_timeout_ms: 120000
  allowed_tools:
    - Read
    - Grep
journal:
  path: ""
`)

	cfg, err := Load(filepath.Join(dir, "clibridge.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.CLI.Path != "/opt/tools/claude" {
		t.Errorf("cli path = %q", cfg.CLI.Path)
	}
	if cfg.CLI.DefaultTimeout() != time.Minute {
		t.Errorf("default timeout = %v, want 1m", cfg.CLI.DefaultTimeout())
	}
	if len(cfg.CLI.AllowedTools) != 2 || cfg.CLI.AllowedTools[0] != "Read" {
		t.Errorf("allowed tools = %v", cfg.CLI.AllowedTools)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("journal path = %q, want empty (journaling disabled)", cfg.Journal.Path)
	}
	// Unset keys keep their defaults.
	if cfg.CLI.ProbeTimeoutMillis != 5000 {
		t.Errorf("probe timeout ms = %d, want default 5000", cfg.CLI.ProbeTimeoutMillis)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
cli:
  path: /from/file
`)
	t.Setenv("CLIBRIDGE_CLI__PATH", "/from/env")
	t.Setenv("CLIBRIDGE_SERVER__PORT", "9200")

	cfg, err := Load(filepath.Join(dir, "clibridge.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CLI.Path != "/from/env" {
		t.Errorf("cli path = %q, want env value", cfg.CLI.Path)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty cli path", "cli:\n  path: \"\"\n"},
		{"zero default timeout", "cli:\n  default_timeout_ms: 0\n"},
		{"max below default", "cli:\n  default_timeout_ms: 60000\n  max_timeout_ms: 30000\n"},
		{"zero probe timeout", "cli:\n  probe_timeout_ms: 0\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := writeConfig(t, c.yaml)
			if _, err := Load(filepath.Join(dir, "clibridge.yaml")); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// writeConfig writes content as clibridge.yaml in a temp dir and returns
// the dir. Empty content creates an empty (but present) file.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clibridge.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return dir
}
