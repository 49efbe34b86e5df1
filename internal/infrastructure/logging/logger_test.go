package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
)

func TestNewWithWriter_JSONCarriesDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)

	logger.Info("device registered", "device_id", "6603041292")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["service"] != "fleetd" {
		t.Errorf("service = %v, want fleetd", entry["service"])
	}
	if entry["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", entry["version"])
	}
	if entry["msg"] != "device registered" {
		t.Errorf("msg = %v, want device registered", entry["msg"])
	}
	if entry["device_id"] != "6603041292" {
		t.Errorf("device_id = %v, want 6603041292", entry["device_id"])
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, "dev", &buf)

	logger.Info("starting")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("text format produced JSON: %s", out)
	}
	if !strings.Contains(out, "service=fleetd") {
		t.Errorf("missing service attribute in %q", out)
	}
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, "dev", &buf)

	logger.Debug("dropped")
	logger.Info("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("below-level entries were written: %s", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn entry was filtered at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWith_AddsComponentAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", &buf)

	child := logger.With("component", "mqtt")
	if child == logger {
		t.Fatal("With() should return a new logger")
	}

	child.Info("connected")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "mqtt" {
		t.Errorf("component = %v, want mqtt", entry["component"])
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
