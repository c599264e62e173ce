package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARNING", WarnLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{" Warning ", WarnLevel},
		{"Debug\n", DebugLevel},
		{"", InfoLevel},
		{"invalid", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestJSONLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Warn("edge dropped",
		EdgeID("Microbe:1_biolink:has_part_Microbe:2"),
		Synonym("GTDB:GCF_000001"),
		Predicate("biolink:has_part"),
		Error(errors.New("unresolved")),
	)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != "WARN" || e.Message != "edge dropped" {
		t.Errorf("Unexpected entry header: %+v", e)
	}
	if e.Fields["synonym"] != "GTDB:GCF_000001" {
		t.Errorf("synonym field = %v", e.Fields["synonym"])
	}
	if e.Fields["error"] != "unresolved" {
		t.Errorf("error field = %v", e.Fields["error"])
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Time); err != nil {
		t.Errorf("time is not RFC3339Nano: %v", err)
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries above WARN, got %d", len(entries))
	}
}

func TestJSONLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewJSONLogger(&buf, InfoLevel)
	child := parent.With(Pass("hierarchy"), RunID("r-1"))

	child.Info("loaded")
	parent.SetLevel(ErrorLevel)
	child.Info("suppressed")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["pass"] != "hierarchy" || entries[0].Fields["run_id"] != "r-1" {
		t.Errorf("Child fields missing: %+v", entries[0].Fields)
	}
	if child.GetLevel() != ErrorLevel {
		t.Errorf("Child level = %v, want ERROR", child.GetLevel())
	}
}

func TestJSONLogger_NoFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger(&buf, InfoLevel).Info("plain")
	if strings.Contains(buf.String(), "fields") {
		t.Errorf("Expected fields to be omitted, got %s", buf.String())
	}
}

func TestNewTeeLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pass.log")

	logger, closer, err := NewTeeLogger(path, InfoLevel)
	if err != nil {
		t.Fatalf("NewTeeLogger failed: %v", err)
	}
	logger.Info("saved snapshot", Path("KG_nodes_v1.tsv"), Count(3))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "saved snapshot") {
		t.Errorf("Log file missing entry: %s", data)
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "load graph", Path("/tmp/kg"))
	if d := timer.EndError(errors.New("boom")); d < 0 {
		t.Errorf("Negative duration %v", d)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0].Level != "ERROR" {
		t.Fatalf("Expected a single ERROR entry, got %+v", entries)
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Error("latency field missing")
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNopLogger()
	l.Info("ignored")
	if l.With(Count(1)) == nil {
		t.Error("With returned nil")
	}
}
