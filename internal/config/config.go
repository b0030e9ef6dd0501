// Package config loads the ivrflow.yaml settings file used by the CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the root of the settings file.
type Config struct {
	LogLevel  string      `yaml:"log_level"`
	LogFormat string      `yaml:"log_format"`
	HTTP      HTTPConfig  `yaml:"http"`
	Store     StoreConfig `yaml:"store"`
	Redis     RedisConfig `yaml:"redis"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		HTTP:      HTTPConfig{Addr: ":8080"},
		Store:     StoreConfig{Backend: BackendMemory, Dir: ".ivrflow"},
		Redis:     RedisConfig{Addr: "localhost:6379", Prefix: "ivrflow:"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendFile && c.Store.Dir == "" {
		return errors.New("store.dir is required for the file backend")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
