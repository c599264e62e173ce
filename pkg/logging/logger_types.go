package logging

import (
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log records by severity.
type Level int

const (
	// DebugLevel is for per-record merge tracing; very noisy on a full pass
	DebugLevel Level = iota
	// InfoLevel is the default logging priority
	InfoLevel
	// WarnLevel marks records that were dropped or repaired but did not stop the pass
	WarnLevel
	// ErrorLevel marks failures that abort a pass, or input the graph refused outright
	ErrorLevel
)

var levelNames = [...]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// String returns the upper-case name written into the "level" key.
func (l Level) String() string {
	if l < DebugLevel || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config or environment value onto a Level. Case and
// surrounding space are ignored, WARNING is accepted for WARN, and anything
// unrecognised falls back to InfoLevel.
func ParseLevel(s string) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return WarnLevel
	}
	for l, name := range levelNames {
		if name == s {
			return Level(l)
		}
	}
	return InfoLevel
}

// Field is one structured key/value attached to a record.
type Field struct {
	Key   string
	Value any
}

// Logger is what every pass, command and store writes to.
type Logger interface {
	// Debug records per-record detail such as a single merge
	Debug(msg string, fields ...Field)
	// Info records pass progress and counts
	Info(msg string, fields ...Field)
	// Warn records a row that was skipped or repaired
	Warn(msg string, fields ...Field)
	// Error records a failure; the caller decides whether to abort
	Error(msg string, fields ...Field)
	// With returns a child logger that stamps fields onto every record
	With(fields ...Field) Logger
	// SetLevel changes the threshold for this logger and every child derived from it
	SetLevel(level Level)
	// GetLevel reports the current threshold
	GetLevel() Level
}

// JSONLogger writes one JSON object per line. Children created with With
// share the parent's writer, lock and level.
type JSONLogger struct {
	writer io.Writer
	level  *Level
	fields []Field
	mu     *sync.Mutex
}

// LogEntry is the line format of a JSONLogger.
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything. Graphs and passes fall back to it when no
// logger is configured.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return InfoLevel }

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation logs the duration of a pass step when it ends.
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
