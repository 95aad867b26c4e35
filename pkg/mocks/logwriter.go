package mocks

import (
	"sync"

	"github.com/user/mp4mcap/pkg/ports"
)

// WrittenMessage records a call to LogWriter.WriteMessage.
type WrittenMessage struct {
	Topic       string
	Data        []byte
	LogTime     uint64
	PublishTime uint64
}

// LogWriter is a mock implementation of ports.LogWriter.
type LogWriter struct {
	StartFunc        func(meta ports.LogMetadata) error
	WriteMessageFunc func(topic string, data []byte, logTime, publishTime uint64) error
	FinishFunc       func() error
	CloseFunc        func() error

	// Recorded calls for verification
	StartCalls  []ports.LogMetadata
	Messages    []WrittenMessage
	FinishCalls int
	CloseCalls  int

	// Order of calls by method name, e.g. Start, WriteMessage, Finish.
	Calls []string
}

func (m *LogWriter) Start(meta ports.LogMetadata) error {
	m.StartCalls = append(m.StartCalls, meta)
	m.Calls = append(m.Calls, "Start")
	if m.StartFunc != nil {
		return m.StartFunc(meta)
	}
	return nil
}

func (m *LogWriter) WriteMessage(topic string, data []byte, logTime, publishTime uint64) error {
	m.Messages = append(m.Messages, WrittenMessage{
		Topic:       topic,
		Data:        data,
		LogTime:     logTime,
		PublishTime: publishTime,
	})
	m.Calls = append(m.Calls, "WriteMessage")
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(topic, data, logTime, publishTime)
	}
	return nil
}

func (m *LogWriter) Finish() error {
	m.FinishCalls++
	m.Calls = append(m.Calls, "Finish")
	if m.FinishFunc != nil {
		return m.FinishFunc()
	}
	return nil
}

func (m *LogWriter) Close() error {
	m.CloseCalls++
	m.Calls = append(m.Calls, "Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// LogWriterFactory hands out a new mock LogWriter per Create call.
type LogWriterFactory struct {
	mu sync.Mutex

	CreateFunc func(path string) (ports.LogWriter, error)

	// Writers maps output paths to the writers created for them.
	Writers     map[string]*LogWriter
	CreateCalls []string
}

// NewLogWriterFactory creates a new mock LogWriterFactory.
func NewLogWriterFactory() *LogWriterFactory {
	return &LogWriterFactory{Writers: make(map[string]*LogWriter)}
}

func (m *LogWriterFactory) Create(path string) (ports.LogWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, path)
	if m.CreateFunc != nil {
		return m.CreateFunc(path)
	}
	w := &LogWriter{}
	m.Writers[path] = w
	return w, nil
}

var (
	_ ports.LogWriter        = (*LogWriter)(nil)
	_ ports.LogWriterFactory = (*LogWriterFactory)(nil)
)
