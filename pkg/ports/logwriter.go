package ports

// LogMetadata describes the source of a log file. It is written once,
// right after the file header.
type LogMetadata struct {
	Name   string
	Fields map[string]string
}

// LogWriter appends timestamped, topic-tagged messages to a log container.
//
// Start must be called exactly once before any WriteMessage, and Finish
// exactly once after the last one. A file is only readable through its
// index after Finish.
type LogWriter interface {
	// Start writes the container header and the metadata record.
	Start(meta LogMetadata) error

	// WriteMessage appends one message. Call order is on-disk order.
	WriteMessage(topic string, data []byte, logTime, publishTime uint64) error

	// Finish writes the summary and footer and closes the file.
	Finish() error

	// Close releases the file without finishing it. It is a no-op after Finish.
	Close() error
}

// LogWriterFactory creates log writers for output paths.
type LogWriterFactory interface {
	Create(path string) (LogWriter, error)
}
