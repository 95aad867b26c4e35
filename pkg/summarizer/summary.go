// Package summarizer provides summary generation for conversion batches.
package summarizer

import (
	"time"

	"github.com/user/mp4mcap/pkg/orchestrator"
)

// Summary contains all data collected during a conversion batch.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMs   int64     `json:"elapsed_ms"`

	// Batch settings
	Settings Settings `json:"settings"`

	// Aggregates over all attempted jobs
	Totals Totals `json:"totals"`

	// Per-file results in discovery order
	Jobs []JobSummary `json:"jobs"`
}

// Settings contains the batch configuration.
type Settings struct {
	Topic         string  `json:"topic"`
	FrameID       string  `json:"frame_id,omitempty"`
	StartTimeNs   *int64  `json:"start_time_ns,omitempty"`
	DefaultFPS    float64 `json:"default_fps"`
	PayloadFormat string  `json:"payload_format"`
	Compression   string  `json:"compression"`
	Jobs          int     `json:"jobs"`
	FailurePolicy string  `json:"failure_policy"`
}

// Totals aggregates job results.
type Totals struct {
	Discovered     int   `json:"discovered"`
	Succeeded      int   `json:"succeeded"`
	Failed         int   `json:"failed"`
	Frames         int   `json:"frames"`
	SkippedPackets int   `json:"skipped_packets"`
	Bytes          int64 `json:"bytes"`
}

// JobSummary describes one converted (or failed) file.
type JobSummary struct {
	Input            string  `json:"input"`
	Output           string  `json:"output"`
	Codec            string  `json:"codec,omitempty"`
	FrameRate        float64 `json:"frame_rate,omitempty"`
	Frames           int     `json:"frames"`
	Packets          int     `json:"packets"`
	SkippedPackets   int     `json:"skipped_packets"`
	Bytes            int64   `json:"bytes"`
	FirstTimestampNs int64   `json:"first_timestamp_ns,omitempty"`
	LastTimestampNs  int64   `json:"last_timestamp_ns,omitempty"`
	ElapsedMs        int64   `json:"elapsed_ms"`
	Error            string  `json:"error,omitempty"`
}

// Failed reports whether the job ended with an error.
func (j JobSummary) Failed() bool {
	return j.Error != ""
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithRun copies the results of a batch.
func (b *Builder) WithRun(result orchestrator.RunResult) *Builder {
	s := b.summary
	s.RunID = result.RunID
	s.StartedAt = result.StartedAt
	s.ElapsedMs = result.Elapsed.Milliseconds()

	s.Totals = Totals{
		Discovered: result.Discovered,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
	}
	s.Jobs = make([]JobSummary, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		js := JobSummary{
			Input:          job.Job.InputPath,
			Output:         job.Job.OutputPath,
			Codec:          job.Codec,
			FrameRate:      job.FrameRate,
			Frames:         job.Frames,
			Packets:        job.Packets,
			SkippedPackets: job.SkippedPackets,
			Bytes:          job.Bytes,
			ElapsedMs:      job.Elapsed.Milliseconds(),
		}
		if job.Frames > 0 {
			js.FirstTimestampNs = job.FirstTimestamp
			js.LastTimestampNs = job.LastTimestamp
		}
		if job.Err != nil {
			js.Error = job.Err.Error()
		}
		s.Jobs = append(s.Jobs, js)

		s.Totals.Frames += job.Frames
		s.Totals.SkippedPackets += job.SkippedPackets
		s.Totals.Bytes += job.Bytes
	}
	return b
}

// WithSettings sets the batch settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithGeneratedAt overrides the generation time.
func (b *Builder) WithGeneratedAt(t time.Time) *Builder {
	b.summary.GeneratedAt = t
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
