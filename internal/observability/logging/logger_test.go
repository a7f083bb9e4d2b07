package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFanoutWritesEveryRecordToEachWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewJSONLoggerWithWriters("intake-worker", "info", &a, nil, &b)

	logger.Debug("hidden")
	logger.Info("task_recorded", "file_id", "1234")

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("%s writer: expected 1 record, got %d: %q", name, len(lines), buf.String())
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
			t.Fatalf("%s writer: invalid json: %v", name, err)
		}
		if record["msg"] != "task_recorded" || record["file_id"] != "1234" || record["service"] != "intake-worker" {
			t.Fatalf("%s writer: unexpected record %v", name, record)
		}
	}
}

func TestNewLoggerAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "intake.log")
	logger, cleanup, err := NewLogger("intake-api", "debug", path)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("webhook_received", "file_id", "1")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"webhook_received"`) {
		t.Fatalf("expected record in log file, got %q", raw)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
