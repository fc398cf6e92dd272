// Package config loads bridge settings from defaults, an optional YAML file,
// and AGENT_BRIDGE_* environment variables. Command-line flags are applied
// on top by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "AGENT_BRIDGE_"

// Config holds the bridge session settings.
type Config struct {
	WebSocketURL   string        `yaml:"websocket_url"`
	AutoConnect    bool          `yaml:"auto_connect"`
	EnableMemory   bool          `yaml:"enable_memory"`
	DBPath         string        `yaml:"db_path"`
	ProbeDelay     time.Duration `yaml:"probe_delay"`
	ProbeText      string        `yaml:"probe_text"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		WebSocketURL:   "wss://web-production-e5dfe.up.railway.app",
		AutoConnect:    true,
		EnableMemory:   true,
		DBPath:         DefaultDBPath(),
		ProbeDelay:     2 * time.Second,
		ProbeText:      "Hello from agent-bridge!",
		ReconnectDelay: 3 * time.Second,
		PingInterval:   20 * time.Second,
		WriteTimeout:   5 * time.Second,
		LogLevel:       "info",
	}
}

// DefaultDBPath is ~/.agent-bridge/bridge.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-bridge", "bridge.db")
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := mergeEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func mergeEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", envPrefix, name, v, err)
		}
		*dst = b
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", envPrefix, name, v, err)
		}
		*dst = d
		return nil
	}

	str("WEBSOCKET_URL", &cfg.WebSocketURL)
	str("DB", &cfg.DBPath)
	str("PROBE_TEXT", &cfg.ProbeText)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("METRICS_ADDR", &cfg.MetricsAddr)

	for _, err := range []error{
		boolean("AUTO_CONNECT", &cfg.AutoConnect),
		boolean("ENABLE_MEMORY", &cfg.EnableMemory),
		duration("PROBE_DELAY", &cfg.ProbeDelay),
		duration("RECONNECT_DELAY", &cfg.ReconnectDelay),
		duration("PING_INTERVAL", &cfg.PingInterval),
		duration("WRITE_TIMEOUT", &cfg.WriteTimeout),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the session cannot run with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.WebSocketURL) == "" {
		problems = append(problems, "websocket_url is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "db_path is required")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"probe_delay", c.ProbeDelay},
		{"reconnect_delay", c.ReconnectDelay},
		{"ping_interval", c.PingInterval},
		{"write_timeout", c.WriteTimeout},
	} {
		if d.value <= 0 {
			problems = append(problems, d.name+" must be positive")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
