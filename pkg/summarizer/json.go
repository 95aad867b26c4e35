package summarizer

import (
	"encoding/json"
)

// JSONFormatter renders a Summary as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format implements the Formatter interface.
func (f *JSONFormatter) Format(s *Summary) string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		// Summary holds only plain values.
		return "{}\n"
	}
	return string(data) + "\n"
}

var _ Formatter = (*JSONFormatter)(nil)
