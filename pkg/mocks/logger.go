package mocks

import (
	"fmt"
	"sync"

	"github.com/user/mp4mcap/pkg/ports"
)

// LogEntry is one recorded log call.
type LogEntry struct {
	Level     ports.LogLevel
	Component string
	Message   string // formatted, untranslated
}

// Logger records log calls. Loggers derived with WithComponent share the
// entry list.
type Logger struct {
	component string
	shared    *loggerEntries
}

type loggerEntries struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLogger creates a recording logger.
func NewLogger() *Logger {
	return &Logger{shared: &loggerEntries{}}
}

func (l *Logger) record(level ports.LogLevel, msg string, args ...interface{}) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.entries = append(l.shared.entries, LogEntry{
		Level:     level,
		Component: l.component,
		Message:   fmt.Sprintf(msg, args...),
	})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record(ports.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record(ports.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record(ports.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record(ports.LevelError, msg, args...) }

func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{component: component, shared: l.shared}
}

// Entries returns the recorded entries.
func (l *Logger) Entries() []LogEntry {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	return append([]LogEntry(nil), l.shared.entries...)
}

// EntriesAt returns the recorded entries of one level.
func (l *Logger) EntriesAt(level ports.LogLevel) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

var _ ports.Logger = (*Logger)(nil)
