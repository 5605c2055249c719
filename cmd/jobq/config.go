package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "JOBQ_"

// Config is the jobq configuration. Values are layered: defaults, then the
// TOML file, then JOBQ_ environment variables with "__" separating nested
// keys (JOBQ_QUEUE__CONCURRENCY=4).
type Config struct {
	Store  string       `koanf:"store"`
	Log    LogConfig    `koanf:"log"`
	Queue  QueueConfig  `koanf:"queue"`
	Worker WorkerConfig `koanf:"worker"`
	HTTP   HTTPConfig   `koanf:"http"`
	NATS   NATSConfig   `koanf:"nats"`
	Audit  AuditConfig  `koanf:"audit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type QueueConfig struct {
	Concurrency     int           `koanf:"concurrency"`
	UpdateInterval  time.Duration `koanf:"update_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	Debug           bool          `koanf:"debug"`
}

type WorkerConfig struct {
	Name        string `koanf:"name"`
	Concurrency int    `koanf:"concurrency"`
	Shell       string `koanf:"shell"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// NATSConfig enables lifecycle event publishing when URL is set.
type NATSConfig struct {
	URL    string `koanf:"url"`
	Prefix string `koanf:"prefix"`
}

// AuditConfig writes an audit line per lifecycle event to the log when
// Enabled. An empty Actions list audits every action.
type AuditConfig struct {
	Enabled bool     `koanf:"enabled"`
	Actions []string `koanf:"actions"`
}

func defaultConfig() Config {
	return Config{
		Store: "jobq.db",
		Log:   LogConfig{Level: "info", Format: "text"},
		Queue: QueueConfig{
			Concurrency:     -1,
			UpdateInterval:  10 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
			PollInterval:    time.Second,
		},
		Worker: WorkerConfig{Name: "exec", Concurrency: 5, Shell: "/bin/sh"},
		HTTP:   HTTPConfig{Addr: ":8080"},
		NATS:   NATSConfig{Prefix: "jobqueue"},
	}
}

// loadConfig reads the configuration. A missing file at path is not an
// error unless required is set.
func loadConfig(path string, required bool) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
