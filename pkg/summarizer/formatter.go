package summarizer

import (
	"path/filepath"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// ForPath picks a formatter from the file extension: JSON for .json,
// Markdown otherwise.
func ForPath(path string) Formatter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONFormatter()
	}
	return NewMarkdownFormatter()
}
