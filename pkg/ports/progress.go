package ports

import "time"

// Progress reports frame progress of a single conversion job.
type Progress interface {
	// Add advances the counter by n frames.
	Add(n int)

	// Finish marks the job as done and releases the output line.
	Finish()
}

// ProgressFactory creates a Progress for one job. total is the expected
// frame count, or -1 when unknown.
type ProgressFactory interface {
	New(description string, total int) Progress
}

// JobOutcome is the observation a Metrics implementation receives per job.
type JobOutcome struct {
	Topic          string
	Frames         int
	SkippedPackets int
	Bytes          int64
	Duration       time.Duration
	Failed         bool
}

// Metrics records batch statistics.
type Metrics interface {
	// ObserveJob records the outcome of one conversion job.
	ObserveJob(outcome JobOutcome)

	// Flush persists the collected metrics.
	Flush() error
}
