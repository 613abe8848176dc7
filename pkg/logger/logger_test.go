package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/aegis-regime/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			if l == nil {
				t.Fatal("Expected logger to be created")
			}
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "test")

	l.WithFields(map[string]interface{}{
		"cycle_id": "c-1",
		"regime":   "BULL",
	}).WithStage("R1").Info("confidence scored")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["cycle_id"] != "c-1" || entry["regime"] != "BULL" || entry["stage"] != "R1" {
		t.Errorf("Missing fields in %v", entry)
	}
	if entry["service"] != "regime" || entry["env"] != "test" {
		t.Errorf("Missing base fields in %v", entry)
	}
	if entry["message"] != "confidence scored" {
		t.Errorf("Unexpected message %v", entry["message"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "test")

	l.WithError(errors.New("boom")).Error("cycle failed")

	entry := decodeLines(t, &buf)[0]
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["level"] != "error" {
		t.Errorf("Expected level error, got %v", entry["level"])
	}
}

func TestNop(t *testing.T) {
	// 패닉 없이 모두 버려져야 함
	l := Nop()
	l.WithField("k", "v").WithCycle("c1").Info("hello")
	l.Warn("ignored")
}

func TestWithCycle(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "test")

	l.WithCycle("5f0c1e2a").WithStage("R3").Info("R3 completed")

	entry := decodeLines(t, &buf)[0]
	if entry["cycle_id"] != "5f0c1e2a" {
		t.Errorf("Expected cycle_id field, got %v", entry["cycle_id"])
	}
	if entry["stage"] != "R3" {
		t.Errorf("Expected stage field, got %v", entry["stage"])
	}
}
