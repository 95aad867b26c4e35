// Package mp4mcap provides a high-level API for converting MP4 video files
// into MCAP logs.
package mp4mcap

import (
	"github.com/user/mp4mcap/pkg/adapters/mcaplog"
	"github.com/user/mp4mcap/pkg/adapters/mp4demuxer"
	"github.com/user/mp4mcap/pkg/orchestrator"
	"github.com/user/mp4mcap/pkg/pipeline"
)

// Config represents the configuration for a conversion batch.
type Config struct {
	// Records
	Topic   string // Channel topic (default: /video/h264)
	FrameID string // Stream identifier in every record (default: Topic)

	// Timing
	StartTimeNs *int64  // Forced start time; nil uses the stream's own
	DefaultFPS  float64 // Extrapolation rate when the stream reports none

	// Reader
	PayloadFormat mp4demuxer.PayloadFormat

	// Writer
	Compression mcaplog.Compression
	ChunkSize   int64

	// Execution
	Jobs            int  // Parallel conversions (default: 1)
	ContinueOnError bool // Run every job even after a failure
	CountFrames     bool // Exact frame totals for progress bars
	ShowProgress    bool
}

// ConfigBuilder provides a fluent interface for building Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new ConfigBuilder with default values.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: defaults(),
	}
}

func defaults() Config {
	return Config{
		Topic:         pipeline.DefaultTopic,
		DefaultFPS:    pipeline.DefaultFrameRate,
		PayloadFormat: mp4demuxer.PayloadAVCC,
		Compression:   mcaplog.CompressionZSTD,
		ChunkSize:     mcaplog.DefaultChunkSize,
		Jobs:          1,
	}
}

// Build returns the final Config, applying constraints.
func (b *ConfigBuilder) Build() Config {
	cfg := b.config

	if cfg.Topic == "" {
		cfg.Topic = pipeline.DefaultTopic
	}
	if cfg.DefaultFPS <= 0 {
		cfg.DefaultFPS = pipeline.DefaultFrameRate
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = mcaplog.DefaultChunkSize
	}

	return cfg
}

// WithTopic sets the channel topic.
func (b *ConfigBuilder) WithTopic(topic string) *ConfigBuilder {
	b.config.Topic = topic
	return b
}

// WithFrameID sets the stream identifier written into every record.
func (b *ConfigBuilder) WithFrameID(frameID string) *ConfigBuilder {
	b.config.FrameID = frameID
	return b
}

// WithStartTimeNs forces the start time of every stream. Zero is the
// Unix epoch.
func (b *ConfigBuilder) WithStartTimeNs(ns int64) *ConfigBuilder {
	b.config.StartTimeNs = &ns
	return b
}

// WithDefaultFPS sets the frame rate used when a stream reports none.
// Values <= 0 fall back to 30.
func (b *ConfigBuilder) WithDefaultFPS(fps float64) *ConfigBuilder {
	b.config.DefaultFPS = fps
	return b
}

// WithPayloadFormat selects AVCC or Annex B framing.
func (b *ConfigBuilder) WithPayloadFormat(format mp4demuxer.PayloadFormat) *ConfigBuilder {
	b.config.PayloadFormat = format
	return b
}

// WithCompression sets the MCAP chunk compression.
func (b *ConfigBuilder) WithCompression(c mcaplog.Compression) *ConfigBuilder {
	b.config.Compression = c
	return b
}

// WithChunkSize sets the MCAP chunk size in bytes.
func (b *ConfigBuilder) WithChunkSize(size int64) *ConfigBuilder {
	b.config.ChunkSize = size
	return b
}

// WithJobs sets the number of parallel conversions.
// Values below 1 will be forced to 1.
func (b *ConfigBuilder) WithJobs(jobs int) *ConfigBuilder {
	b.config.Jobs = jobs
	return b
}

// WithContinueOnError keeps converting after a failed file.
func (b *ConfigBuilder) WithContinueOnError(enabled bool) *ConfigBuilder {
	b.config.ContinueOnError = enabled
	return b
}

// WithCountFrames enables the counting pass before writing.
func (b *ConfigBuilder) WithCountFrames(enabled bool) *ConfigBuilder {
	b.config.CountFrames = enabled
	return b
}

// WithProgress enables terminal progress bars.
func (b *ConfigBuilder) WithProgress(enabled bool) *ConfigBuilder {
	b.config.ShowProgress = enabled
	return b
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig(inputPaths []string, outputDir string) orchestrator.Config {
	policy := orchestrator.FailFast
	if c.ContinueOnError {
		policy = orchestrator.ContinueOnError
	}

	return orchestrator.Config{
		InputPaths: inputPaths,
		OutputDir:  outputDir,

		Topic:   c.Topic,
		FrameID: c.FrameID,

		GlobalStartTimeNs: c.StartTimeNs,
		DefaultFrameRate:  c.DefaultFPS,

		Jobs:          c.Jobs,
		FailurePolicy: policy,
		CountFrames:   c.CountFrames,
		ShowProgress:  c.ShowProgress,
	}
}

// DemuxerOptions returns the reader options.
func (c Config) DemuxerOptions() mp4demuxer.Options {
	return mp4demuxer.Options{PayloadFormat: c.PayloadFormat}
}

// WriterOptions returns the writer options.
func (c Config) WriterOptions() mcaplog.Options {
	return mcaplog.Options{Compression: c.Compression, ChunkSize: c.ChunkSize}
}
