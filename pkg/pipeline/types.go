package pipeline

import (
	"time"
)

// InputExtension is the file extension selected during discovery,
// compared case-insensitively.
const InputExtension = ".mp4"

// OutputExtension replaces the input extension on output files.
const OutputExtension = ".mcap"

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "/video/h264"

// DefaultFrameRate is used when a stream reports no usable frame rate.
const DefaultFrameRate = 30.0

// =============================================================================
// Discover Stage Types
// =============================================================================

// DiscoverInput contains the raw input paths of a batch.
type DiscoverInput struct {
	Paths     []string // Files and/or directories
	OutputDir string
	Topic     string
	FrameID   string // Stream identifier written into every record; defaults to Topic
}

// DiscoverResult lists one job per matched input file.
type DiscoverResult struct {
	Jobs []ConversionJob
}

// ConversionJob converts one input file into one output file.
type ConversionJob struct {
	InputPath  string
	OutputPath string
	Topic      string
	FrameID    string
}

// =============================================================================
// Convert Stage Types
// =============================================================================

// TimingOptions controls timestamp derivation for packets without a PTS.
type TimingOptions struct {
	// GlobalStartTimeNs forces the start time. nil means "not set";
	// a pointer to zero forces the Unix epoch.
	GlobalStartTimeNs *int64

	// DefaultFrameRate is used when the stream has no average frame rate.
	DefaultFrameRate float64
}

// ConvertInput contains one job and its options.
type ConvertInput struct {
	Job    ConversionJob
	Timing TimingOptions

	// CountFrames demuxes the input once before writing to get an exact
	// frame total for progress reporting.
	CountFrames bool

	// ShowProgress enables the progress reporter for this job.
	ShowProgress bool
}

// ConvertResult is the outcome of one job.
type ConvertResult struct {
	Job            ConversionJob
	Codec          string
	FrameRate      float64
	Packets        int // Packets demuxed
	Frames         int // Records written
	SkippedPackets int // Packets without payload
	Bytes          int64
	FirstTimestamp int64 // ns; valid when Frames > 0
	LastTimestamp  int64 // ns; valid when Frames > 0
	Elapsed        time.Duration
}
