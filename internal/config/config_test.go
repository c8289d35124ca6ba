package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DatabasePath != "applyd.db" {
		t.Fatalf("database path = %q", cfg.DatabasePath)
	}
	if cfg.Daemon.Interval != 30*time.Minute {
		t.Fatalf("interval = %v", cfg.Daemon.Interval)
	}
	if cfg.Daemon.MaxPerRun != 5 || cfg.Daemon.Retries != 2 {
		t.Fatalf("daemon defaults: %+v", cfg.Daemon)
	}
	if cfg.Daemon.JobDelayMin != 30*time.Second || cfg.Daemon.JobDelayMax != 90*time.Second {
		t.Fatalf("job delay bounds: %+v", cfg.Daemon)
	}
	if !cfg.Browser.Headless {
		t.Fatal("browser defaults to headless")
	}
	if cfg.Engine.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("ollama url = %q", cfg.Engine.Ollama.BaseURL)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("APPLYD_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("APPLYD_ADDR", ":9999")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabasePath != "/tmp/env.db" {
		t.Fatalf("env override ignored: %q", cfg.DatabasePath)
	}
	if cfg.API.Addr != ":9999" {
		t.Fatalf("env override ignored: %q", cfg.API.Addr)
	}
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database_path: /data/applyd.db
daemon:
  interval: 10m
  max_per_run: 2
  tailoring: false
browser:
  headless: false
notion:
  token: secret
  database_id: abc123
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabasePath != "/data/applyd.db" {
		t.Fatalf("yaml override ignored: %q", cfg.DatabasePath)
	}
	if cfg.Daemon.Interval != 10*time.Minute || cfg.Daemon.MaxPerRun != 2 {
		t.Fatalf("daemon overlay: %+v", cfg.Daemon)
	}
	if cfg.Daemon.Tailoring {
		t.Fatal("tailoring should be disabled by overlay")
	}
	if cfg.Browser.Headless {
		t.Fatal("headless should be disabled by overlay")
	}
	if cfg.Notion.Token != "secret" || cfg.Notion.DatabaseID != "abc123" {
		t.Fatalf("notion overlay: %+v", cfg.Notion)
	}
	// untouched sections keep defaults
	if cfg.Daemon.Retries != 2 {
		t.Fatalf("retries default lost: %d", cfg.Daemon.Retries)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
