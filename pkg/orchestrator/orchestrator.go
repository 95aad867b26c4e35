// Package orchestrator runs a conversion batch: discovery, then one
// conversion per input file.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

// FailurePolicy decides what a failed job does to the rest of the batch.
type FailurePolicy string

const (
	// FailFast aborts the batch on the first failed job.
	FailFast FailurePolicy = "fail-fast"
	// ContinueOnError runs every job and reports all failures at the end.
	ContinueOnError FailurePolicy = "continue"
)

// ParseFailurePolicy validates a policy name. The empty string is FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailFast:
		return FailFast, nil
	case ContinueOnError:
		return ContinueOnError, nil
	default:
		return "", fmt.Errorf("orchestrator: unknown failure policy %q", s)
	}
}

// Config contains all configuration for one batch.
type Config struct {
	// Input
	InputPaths []string
	OutputDir  string

	// Output records
	Topic   string
	FrameID string // Defaults to Topic

	// Timing
	GlobalStartTimeNs *int64
	DefaultFrameRate  float64

	// Execution
	Jobs          int // Parallel conversions; 1 runs sequentially
	FailurePolicy FailurePolicy
	CountFrames   bool
	ShowProgress  bool // Ignored when Jobs > 1
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Topic:            pipeline.DefaultTopic,
		DefaultFrameRate: pipeline.DefaultFrameRate,
		Jobs:             1,
		FailurePolicy:    FailFast,
		ShowProgress:     true,
	}
}

// Orchestrator coordinates the discover and convert stages.
type Orchestrator struct {
	discoverStage pipeline.Stage[pipeline.DiscoverInput, pipeline.DiscoverResult]
	convertStage  pipeline.Stage[pipeline.ConvertInput, pipeline.ConvertResult]
	fs            ports.FileSystem
	metrics       ports.Metrics
	logger        ports.Logger
}

// New creates a new Orchestrator.
func New(
	discoverStage pipeline.Stage[pipeline.DiscoverInput, pipeline.DiscoverResult],
	convertStage pipeline.Stage[pipeline.ConvertInput, pipeline.ConvertResult],
	fs ports.FileSystem,
	metrics ports.Metrics,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		discoverStage: discoverStage,
		convertStage:  convertStage,
		fs:            fs,
		metrics:       metrics,
		logger:        logger,
	}
}

// JobResult is the outcome of one attempted job.
type JobResult struct {
	pipeline.ConvertResult
	Err error
}

// RunResult contains the results of a batch for summary generation.
type RunResult struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration

	// Jobs lists the attempted jobs in discovery order. With FailFast,
	// jobs after the first failure are not attempted and not listed.
	Jobs       []JobResult
	Discovered int
	Succeeded  int
	Failed     int

	TotalFrames int
}

// Run executes the batch. The returned error is nil only when every
// discovered job succeeded.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	result := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	o.logger.Debug("Starting batch %s", result.RunID)

	discovered, err := o.discoverStage.Execute(ctx, pipeline.DiscoverInput{
		Paths:     config.InputPaths,
		OutputDir: config.OutputDir,
		Topic:     config.Topic,
		FrameID:   config.FrameID,
	})
	if err != nil {
		o.logger.Error("Failed to find input files: %v", err)
		result.Elapsed = time.Since(result.StartedAt)
		return result, fmt.Errorf("discover stage: %w", err)
	}
	jobs := discovered.Jobs
	result.Discovered = len(jobs)
	o.logger.Info("Found %d MP4 files", len(jobs))

	if err := o.createOutputDirs(jobs); err != nil {
		o.logger.Error("Failed to write output: %v", err)
		result.Elapsed = time.Since(result.StartedAt)
		return result, err
	}

	workers := config.Jobs
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var slots []*JobResult
	if workers == 1 {
		slots, err = o.runSequential(ctx, config, jobs)
	} else {
		slots, err = o.runParallel(ctx, config, jobs, workers)
	}

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		result.Jobs = append(result.Jobs, *slot)
		if slot.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
			result.TotalFrames += slot.Frames
		}
	}

	if flushErr := o.metrics.Flush(); flushErr != nil {
		o.logger.Warn("Failed to write metrics: %v", flushErr)
	}

	result.Elapsed = time.Since(result.StartedAt)
	o.logger.Info("Batch completed: %d succeeded, %d failed", result.Succeeded, result.Failed)
	return result, err
}

// runSequential converts jobs one by one.
func (o *Orchestrator) runSequential(ctx context.Context, config Config, jobs []pipeline.ConversionJob) ([]*JobResult, error) {
	slots := make([]*JobResult, len(jobs))
	var errs *multierror.Error

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return slots, errors.Join(errs.ErrorOrNil(), err)
		}

		slot := o.convert(ctx, config, job, config.ShowProgress)
		slots[i] = slot
		if slot.Err == nil {
			continue
		}

		jobErr := fmt.Errorf("convert %s: %w", job.InputPath, slot.Err)
		if config.FailurePolicy != ContinueOnError {
			return slots, jobErr
		}
		errs = multierror.Append(errs, jobErr)
	}

	return slots, errs.ErrorOrNil()
}

// runParallel converts jobs with a bounded number of goroutines. Each job
// owns its reader and writer; progress bars are disabled. Jobs writing the
// same output file share a lane and run one after another in discovery
// order, so the last one wins as in a sequential run.
func (o *Orchestrator) runParallel(ctx context.Context, config Config, jobs []pipeline.ConversionJob, workers int) ([]*JobResult, error) {
	slots := make([]*JobResult, len(jobs))

	failFast := config.FailurePolicy != ContinueOnError
	groupCtx := ctx
	var g *errgroup.Group
	if failFast {
		g, groupCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(workers)

	var mu sync.Mutex
	var failures []int

	for _, lane := range outputLanes(jobs) {
		if groupCtx.Err() != nil {
			break
		}
		lane := lane
		g.Go(func() error {
			for _, i := range lane {
				if groupCtx.Err() != nil {
					return nil
				}
				slot := o.convert(groupCtx, config, jobs[i], false)
				slots[i] = slot
				if slot.Err == nil {
					continue
				}
				mu.Lock()
				failures = append(failures, i)
				mu.Unlock()
				if failFast {
					return fmt.Errorf("convert %s: %w", jobs[i].InputPath, slot.Err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return slots, err
	}
	if err := ctx.Err(); err != nil {
		return slots, err
	}

	// Report failures in discovery order.
	sort.Ints(failures)
	var errs *multierror.Error
	for _, i := range failures {
		errs = multierror.Append(errs, fmt.Errorf("convert %s: %w", jobs[i].InputPath, slots[i].Err))
	}
	return slots, errs.ErrorOrNil()
}

// outputLanes groups job indices by output path. Lanes are ordered by
// their first job and keep discovery order inside.
func outputLanes(jobs []pipeline.ConversionJob) [][]int {
	var lanes [][]int
	byOutput := make(map[string]int)
	for i, job := range jobs {
		if l, ok := byOutput[job.OutputPath]; ok {
			lanes[l] = append(lanes[l], i)
			continue
		}
		byOutput[job.OutputPath] = len(lanes)
		lanes = append(lanes, []int{i})
	}
	return lanes
}

// convert runs one job and records its outcome.
func (o *Orchestrator) convert(ctx context.Context, config Config, job pipeline.ConversionJob, showProgress bool) *JobResult {
	o.logger.Info("Converting %s -> %s", job.InputPath, job.OutputPath)

	began := time.Now()
	res, err := o.convertStage.Execute(ctx, pipeline.ConvertInput{
		Job: job,
		Timing: pipeline.TimingOptions{
			GlobalStartTimeNs: config.GlobalStartTimeNs,
			DefaultFrameRate:  config.DefaultFrameRate,
		},
		CountFrames:  config.CountFrames,
		ShowProgress: showProgress,
	})
	res.Job = job
	if res.Elapsed == 0 {
		res.Elapsed = time.Since(began)
	}

	o.metrics.ObserveJob(ports.JobOutcome{
		Topic:          job.Topic,
		Frames:         res.Frames,
		SkippedPackets: res.SkippedPackets,
		Bytes:          res.Bytes,
		Duration:       res.Elapsed,
		Failed:         err != nil,
	})

	if err != nil {
		o.logger.Error("Failed to convert %s: %v", job.InputPath, err)
		return &JobResult{ConvertResult: res, Err: err}
	}

	if res.SkippedPackets > 0 {
		o.logger.Warn("Skipped %d packets without payload in %s", res.SkippedPackets, job.InputPath)
	}
	o.logger.Info("Wrote %d frames to %s in %s", res.Frames, job.OutputPath, res.Elapsed.Round(time.Millisecond))
	return &JobResult{ConvertResult: res}
}

// createOutputDirs creates the parent directory of every output file.
func (o *Orchestrator) createOutputDirs(jobs []pipeline.ConversionJob) error {
	created := make(map[string]bool)
	for _, job := range jobs {
		dir := filepath.Dir(job.OutputPath)
		if created[dir] {
			continue
		}
		if err := o.fs.MkdirAll(dir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		created[dir] = true
	}
	return nil
}
