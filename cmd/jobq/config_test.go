package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := defaultConfig()
	if cfg.Store != want.Store || cfg.Worker != want.Worker || cfg.Queue != want.Queue {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfig_MissingRequiredFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), true); err == nil {
		t.Fatal("expected error for missing required config file")
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobq.toml")
	content := `
store = "postgres://localhost/jobs"

[queue]
concurrency = 3
update_interval = "50ms"

[worker]
name = "shell"
concurrency = 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBQ_WORKER__CONCURRENCY", "7")
	t.Setenv("JOBQ_LOG__FORMAT", "json")

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Store != "postgres://localhost/jobs" {
		t.Errorf("store = %q", cfg.Store)
	}
	if cfg.Queue.Concurrency != 3 || cfg.Queue.UpdateInterval != 50*time.Millisecond {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Queue.ShutdownTimeout != 30*time.Second {
		t.Errorf("unset value lost its default: %v", cfg.Queue.ShutdownTimeout)
	}
	if cfg.Worker.Name != "shell" || cfg.Worker.Concurrency != 7 {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg     LogConfig
		wantErr bool
	}{
		{LogConfig{Level: "info", Format: "text"}, false},
		{LogConfig{Level: "debug", Format: "json"}, false},
		{LogConfig{Level: "loud", Format: "text"}, true},
		{LogConfig{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		_, err := newLogger(os.Stderr, tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}
