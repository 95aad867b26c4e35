// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/user/mp4mcap/pkg/adapters/mcaplog"
	"github.com/user/mp4mcap/pkg/adapters/mp4demuxer"
	"github.com/user/mp4mcap/pkg/orchestrator"
	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

// Environment variables consulted when the matching setting is empty.
const (
	EnvInputPaths = "INPUT_PATHS"
	EnvOutputDir  = "OUTPUT_DIR"
	EnvTopic      = "TOPIC"
)

// Log formats accepted by LogFormat.
const (
	LogFormatConsole = "console"
	LogFormatText    = "text"
	LogFormatJSON    = "json"
)

// Config represents the full configuration for mp4mcap.
type Config struct {
	// Input/Output
	InputPaths []string `yaml:"input_paths"`
	OutputDir  string   `yaml:"output_dir"`

	// Records
	Topic   string `yaml:"topic"`
	FrameID string `yaml:"frame_id"`

	// TopicSet records that Topic came from the config file or a flag,
	// which keeps TOPIC from replacing it even when it equals the default.
	TopicSet bool `yaml:"-"`

	// Timing
	StartTimeNs *int64  `yaml:"start_time_ns"`
	DefaultFPS  float64 `yaml:"default_fps"`

	// Reader/Writer
	PayloadFormat string `yaml:"payload_format"`
	Compression   string `yaml:"compression"`
	ChunkSize     int64  `yaml:"chunk_size"`

	// Execution
	Jobs            int  `yaml:"jobs"`
	ContinueOnError bool `yaml:"continue_on_error"`
	CountFrames     bool `yaml:"count_frames"`
	ShowProgress    bool `yaml:"show_progress"`

	// Reports
	SummaryPath string `yaml:"summary"`
	MetricsFile string `yaml:"metrics_file"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Topic:         pipeline.DefaultTopic,
		DefaultFPS:    pipeline.DefaultFrameRate,
		PayloadFormat: string(mp4demuxer.PayloadAVCC),
		Compression:   string(mcaplog.CompressionZSTD),
		ChunkSize:     mcaplog.DefaultChunkSize,
		Jobs:          1,
		ShowProgress:  true,
		LogLevel:      "info",
		LogFormat:     LogFormatConsole,
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	cfg.Topic = ""
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Topic != "" {
		cfg.TopicSet = true
	} else {
		cfg.Topic = pipeline.DefaultTopic
	}

	return cfg, nil
}

// ApplyEnv fills empty input, output and topic settings from the
// environment. A topic is only replaced when it is empty or still the
// unset default. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if len(c.InputPaths) == 0 {
		if v, ok := lookup(EnvInputPaths); ok && v != "" {
			for _, p := range filepath.SplitList(v) {
				if p != "" {
					c.InputPaths = append(c.InputPaths, p)
				}
			}
		}
	}
	if c.OutputDir == "" {
		if v, ok := lookup(EnvOutputDir); ok {
			c.OutputDir = v
		}
	}
	if c.Topic == "" || (!c.TopicSet && c.Topic == pipeline.DefaultTopic) {
		if v, ok := lookup(EnvTopic); ok && v != "" {
			c.Topic = v
		}
	}
}

// Validate checks values that cannot be fixed by defaulting.
func (c Config) Validate() error {
	if len(c.InputPaths) == 0 {
		return fmt.Errorf("config: no input paths (set --input-paths or %s)", EnvInputPaths)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: no output directory (set --output-dir or %s)", EnvOutputDir)
	}
	if c.Topic == "" {
		return fmt.Errorf("config: topic must not be empty")
	}
	if c.DefaultFPS <= 0 {
		return fmt.Errorf("config: default fps must be positive, got %g", c.DefaultFPS)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("config: jobs must be at least 1, got %d", c.Jobs)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("config: chunk size must not be negative, got %d", c.ChunkSize)
	}
	if _, err := mp4demuxer.ParsePayloadFormat(c.PayloadFormat); err != nil {
		return err
	}
	if _, err := mcaplog.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := ports.LookupLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// FailurePolicy returns the orchestrator policy selected by ContinueOnError.
func (c Config) FailurePolicy() orchestrator.FailurePolicy {
	if c.ContinueOnError {
		return orchestrator.ContinueOnError
	}
	return orchestrator.FailFast
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		InputPaths: c.InputPaths,
		OutputDir:  c.OutputDir,

		Topic:   c.Topic,
		FrameID: c.FrameID,

		GlobalStartTimeNs: c.StartTimeNs,
		DefaultFrameRate:  c.DefaultFPS,

		Jobs:          c.Jobs,
		FailurePolicy: c.FailurePolicy(),
		CountFrames:   c.CountFrames,
		ShowProgress:  c.ShowProgress,
	}
}

// DemuxerOptions returns the reader options. Validate must have passed.
func (c Config) DemuxerOptions() mp4demuxer.Options {
	format, _ := mp4demuxer.ParsePayloadFormat(c.PayloadFormat)
	return mp4demuxer.Options{PayloadFormat: format}
}

// WriterOptions returns the writer options. Validate must have passed.
func (c Config) WriterOptions() mcaplog.Options {
	compression, _ := mcaplog.ParseCompression(c.Compression)
	return mcaplog.Options{Compression: compression, ChunkSize: c.ChunkSize}
}
