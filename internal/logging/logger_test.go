package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test-svc"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("router")
	l.Info().Str("k", "v").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %q", buf.String())
	}
	for field, want := range map[string]string{
		"component": "router",
		"service":   "test-svc",
		"message":   "hello",
		"k":         "v",
		"level":     "info",
	} {
		if entry[field] != want {
			t.Errorf("%s = %v, want %s", field, entry[field], want)
		}
	}
}

func TestConfigureLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("global level = %s", zerolog.GlobalLevel())
	}
	quiet := WithComponent("x")
	quiet.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}

	Configure(Config{Level: "nonsense", Output: &buf})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("bad level should fall back to info, got %s", zerolog.GlobalLevel())
	}
}
