package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/ideamans/go-l10n"
	"github.com/sirupsen/logrus"

	"github.com/user/mp4mcap/pkg/ports"
)

// Format selects the structured log encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a log format name. "console" is not a structured
// format and is handled by the caller.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("logger: unknown structured format %q", s)
	}
}

// StructuredLogger writes log entries through logrus. Messages are
// translated like the console logger; the component becomes a field.
type StructuredLogger struct {
	entry *logrus.Entry
}

// NewStructured creates a logrus-backed logger writing to out.
func NewStructured(level ports.LogLevel, format Format, out io.Writer) *StructuredLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrusLevel(level))
	if format == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return &StructuredLogger{entry: logrus.NewEntry(l)}
}

func logrusLevel(level ports.LogLevel) logrus.Level {
	switch level {
	case ports.LevelDebug:
		return logrus.DebugLevel
	case ports.LevelInfo:
		return logrus.InfoLevel
	case ports.LevelWarn:
		return logrus.WarnLevel
	case ports.LevelError:
		return logrus.ErrorLevel
	default:
		// LevelQuiet: logrus has no "off"; panic level is never used here.
		return logrus.PanicLevel
	}
}

// Debug logs a debug message.
func (l *StructuredLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debug(l10n.F(msg, args...))
}

// Info logs an informational message.
func (l *StructuredLogger) Info(msg string, args ...interface{}) {
	l.entry.Info(l10n.F(msg, args...))
}

// Warn logs a warning message.
func (l *StructuredLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warn(l10n.F(msg, args...))
}

// Error logs an error message.
func (l *StructuredLogger) Error(msg string, args ...interface{}) {
	l.entry.Error(l10n.F(msg, args...))
}

// WithComponent returns a logger that adds a component field.
func (l *StructuredLogger) WithComponent(component string) ports.Logger {
	return &StructuredLogger{entry: l.entry.WithField("component", component)}
}

var _ ports.Logger = (*StructuredLogger)(nil)
