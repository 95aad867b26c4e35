// Package mcaplog writes and reads MCAP log files using the foxglove mcap
// library.
package mcaplog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/user/mp4mcap/pkg/framemsg"
	"github.com/user/mp4mcap/pkg/ports"
)

var (
	// ErrNotStarted is returned when writing before Start.
	ErrNotStarted = errors.New("mcaplog: writer not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("mcaplog: writer already started")

	// ErrFinished is returned when using a writer after Finish or Close.
	ErrFinished = errors.New("mcaplog: writer finished")
)

// Library is recorded in the MCAP header.
const Library = "mp4mcap"

// Compression selects the chunk compression.
type Compression string

const (
	CompressionZSTD Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

// DefaultChunkSize is the uncompressed chunk size target in bytes.
const DefaultChunkSize = 4 * 1024 * 1024

// ParseCompression validates a compression name. The empty string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionZSTD:
		return CompressionZSTD, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionNone:
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("mcaplog: unknown compression %q", s)
	}
}

func (c Compression) format() mcap.CompressionFormat {
	switch c {
	case CompressionLZ4:
		return mcap.CompressionLZ4
	case CompressionNone:
		return mcap.CompressionNone
	default:
		return mcap.CompressionZSTD
	}
}

// Options configures the MCAP output.
type Options struct {
	Compression Compression
	ChunkSize   int64
}

func (o Options) withDefaults() Options {
	if o.Compression == "" {
		o.Compression = CompressionZSTD
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Factory creates MCAP writers.
type Factory struct {
	opts Options
}

// NewFactory creates a new Factory.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts.withDefaults()}
}

// Create creates (or truncates) the file at path, creating parent
// directories as needed.
func (f *Factory) Create(path string) (ports.LogWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	w, err := newWriter(file, f.opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// Writer writes foxglove.CompressedVideo messages into one MCAP file.
// Schema and channel records are emitted lazily, one channel per topic.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	mw   *mcap.Writer

	started  bool
	finished bool

	schemaID  uint16
	channels  map[string]uint16
	sequences map[uint16]uint32
}

func newWriter(file *os.File, opts Options) (*Writer, error) {
	opts = opts.withDefaults()
	buf := bufio.NewWriter(file)

	mw, err := mcap.NewWriter(buf, &mcap.WriterOptions{
		IncludeCRC:  true,
		Chunked:     true,
		ChunkSize:   opts.ChunkSize,
		Compression: opts.Compression.format(),
	})
	if err != nil {
		return nil, fmt.Errorf("create mcap writer: %w", err)
	}

	return &Writer{
		file:      file,
		buf:       buf,
		mw:        mw,
		channels:  make(map[string]uint16),
		sequences: make(map[uint16]uint32),
	}, nil
}

// Start writes the header and, when meta has a name, a metadata record.
func (w *Writer) Start(meta ports.LogMetadata) error {
	if w.finished {
		return ErrFinished
	}
	if w.started {
		return ErrAlreadyStarted
	}

	if err := w.mw.WriteHeader(&mcap.Header{Library: Library}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if meta.Name != "" {
		if err := w.mw.WriteMetadata(&mcap.Metadata{
			Name:     meta.Name,
			Metadata: meta.Fields,
		}); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}

	w.started = true
	return nil
}

// WriteMessage appends one encoded frame on topic.
func (w *Writer) WriteMessage(topic string, data []byte, logTime, publishTime uint64) error {
	if w.finished {
		return ErrFinished
	}
	if !w.started {
		return ErrNotStarted
	}

	channelID, err := w.channel(topic)
	if err != nil {
		return err
	}

	seq := w.sequences[channelID]
	w.sequences[channelID] = seq + 1

	if err := w.mw.WriteMessage(&mcap.Message{
		ChannelID:   channelID,
		Sequence:    seq,
		LogTime:     logTime,
		PublishTime: publishTime,
		Data:        data,
	}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// channel returns the channel id for topic, writing the schema and channel
// records on first use.
func (w *Writer) channel(topic string) (uint16, error) {
	if id, ok := w.channels[topic]; ok {
		return id, nil
	}

	if w.schemaID == 0 {
		schema, err := framemsg.SchemaData()
		if err != nil {
			return 0, fmt.Errorf("build schema: %w", err)
		}
		if err := w.mw.WriteSchema(&mcap.Schema{
			ID:       1,
			Name:     framemsg.SchemaName,
			Encoding: framemsg.SchemaEncoding,
			Data:     schema,
		}); err != nil {
			return 0, fmt.Errorf("write schema: %w", err)
		}
		w.schemaID = 1
	}

	id := uint16(len(w.channels) + 1)
	if err := w.mw.WriteChannel(&mcap.Channel{
		ID:              id,
		SchemaID:        w.schemaID,
		Topic:           topic,
		MessageEncoding: framemsg.MessageEncoding,
		Metadata:        map[string]string{},
	}); err != nil {
		return 0, fmt.Errorf("write channel: %w", err)
	}
	w.channels[topic] = id
	return id, nil
}

// Finish writes the summary section and footer, then closes the file.
func (w *Writer) Finish() error {
	if w.finished {
		return ErrFinished
	}
	if !w.started {
		return ErrNotStarted
	}
	w.finished = true

	if err := w.mw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("finalize mcap: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// Close releases the file without writing the summary. Buffered records
// are flushed so a partial file keeps what was written. No-op after Finish.
func (w *Writer) Close() error {
	if w.finished {
		return nil
	}
	w.finished = true

	flushErr := w.buf.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	return nil
}

var (
	_ ports.LogWriterFactory = (*Factory)(nil)
	_ ports.LogWriter        = (*Writer)(nil)
)
