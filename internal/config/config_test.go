package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.AutoConnect || !cfg.EnableMemory {
		t.Errorf("expected auto_connect and enable_memory on by default")
	}
	if cfg.ProbeDelay != 2*time.Second {
		t.Errorf("probe_delay = %v", cfg.ProbeDelay)
	}
	if !strings.HasPrefix(cfg.WebSocketURL, "wss://") {
		t.Errorf("websocket_url = %q", cfg.WebSocketURL)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
websocket_url: ws://localhost:9000/ws
enable_memory: false
probe_delay: 500ms
db_path: /tmp/bridge-test.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WebSocketURL != "ws://localhost:9000/ws" {
		t.Errorf("websocket_url = %q", cfg.WebSocketURL)
	}
	if cfg.EnableMemory {
		t.Error("expected enable_memory false")
	}
	if cfg.ProbeDelay != 500*time.Millisecond {
		t.Errorf("probe_delay = %v", cfg.ProbeDelay)
	}
	// Untouched keys keep their defaults.
	if cfg.PingInterval != 20*time.Second {
		t.Errorf("ping_interval = %v", cfg.PingInterval)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "websocket_url: ws://x\nwebsocket: ws://y\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected strict decode error")
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv("AGENT_BRIDGE_LOG_LEVEL", "debug")
	t.Setenv("AGENT_BRIDGE_DB", "/tmp/env.db")
	t.Setenv("AGENT_BRIDGE_AUTO_CONNECT", "false")
	t.Setenv("AGENT_BRIDGE_RECONNECT_DELAY", "10s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.AutoConnect {
		t.Error("expected auto_connect false")
	}
	if cfg.ReconnectDelay != 10*time.Second {
		t.Errorf("reconnect_delay = %v", cfg.ReconnectDelay)
	}
}

func TestInvalidEnv(t *testing.T) {
	t.Setenv("AGENT_BRIDGE_PING_INTERVAL", "often")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.WebSocketURL = " "
	cfg.WriteTimeout = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"websocket_url", "write_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
