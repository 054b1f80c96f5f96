package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/i474232898/weather-recorder/internal/config"
)

func TestNewWithWriterJSONForReleaseBuilds(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.AppConfig{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := NewWithWriter(&buf, cfg, "1.2.3", "weather-recorder")
	logger.Debug("hidden")
	logger.Info("reading stored", "id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k, want := range map[string]any{"app": "weather-recorder", "version": "1.2.3", "env": "prod", "msg": "reading stored"} {
		if entry[k] != want {
			t.Errorf("%s: got %v, want %v", k, entry[k], want)
		}
	}
}

func TestNewWithWriterTextForDevBuilds(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.AppConfig{AppEnv: "dev", LogLevel: slog.LevelDebug}

	NewWithWriter(&buf, cfg, "dev", "weather-recorder").Debug("tick")

	out := buf.String()
	if !strings.Contains(out, "tick") || !strings.Contains(out, "app=weather-recorder") {
		t.Fatalf("unexpected dev output: %q", out)
	}
}
