// Package convert implements the conversion stage: one MP4 input is
// demuxed, timestamped and written to one MCAP output.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/user/mp4mcap/pkg/framemsg"
	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
	"github.com/user/mp4mcap/pkg/timing"
)

// CodecH264 is the only codec the stage converts.
const CodecH264 = "h264"

// MetadataName names the metadata record describing the source file.
const MetadataName = "source"

// Stage converts one job.
type Stage struct {
	demuxer  ports.Demuxer
	writers  ports.LogWriterFactory
	progress ports.ProgressFactory
	logger   ports.Logger

	// Now is the wall clock used for streams without any start time.
	Now func() time.Time
}

// New creates a new convert stage.
func New(demuxer ports.Demuxer, writers ports.LogWriterFactory, progress ports.ProgressFactory, logger ports.Logger) *Stage {
	return &Stage{
		demuxer:  demuxer,
		writers:  writers,
		progress: progress,
		logger:   logger.WithComponent("convert"),
		Now:      time.Now,
	}
}

// Execute runs the job. The output is created only after the input has
// been opened and its video stream validated. Once created, the writer is
// started exactly once and finished exactly once unless an error occurs,
// in which case the partial file is closed and left in place.
func (s *Stage) Execute(ctx context.Context, input pipeline.ConvertInput) (pipeline.ConvertResult, error) {
	began := time.Now()
	job := input.Job
	result := pipeline.ConvertResult{Job: job}

	container, err := s.demuxer.Open(job.InputPath)
	if err != nil {
		return result, err
	}
	defer container.Close()

	stream, err := container.VideoStream()
	if err != nil {
		return result, fmt.Errorf("%s: %w", job.InputPath, err)
	}
	result.Codec = stream.Codec
	if stream.Codec != CodecH264 {
		return result, fmt.Errorf("%s: %w: %s", job.InputPath, pipeline.ErrUnsupportedCodec, stream.Codec)
	}

	opts := timing.FromPipeline(input.Timing)
	opts.Now = s.Now
	resolver := timing.NewResolver(stream, opts)
	result.FrameRate = resolver.FrameRate()

	s.logger.Debug("Opened %s: %s %dx%d, %.3f fps, %d frames",
		job.InputPath, stream.Codec, stream.Width, stream.Height, resolver.FrameRate(), stream.FrameCount)
	s.logger.Debug("Start time %d ns (%s)", resolver.StartTime(), resolver.StartSource())

	total := stream.FrameCount
	if input.CountFrames {
		s.logger.Debug("Counting frames in %s", job.InputPath)
		total, err = s.count(ctx, container, stream.Index)
		if err != nil {
			return result, err
		}
	}
	if total <= 0 {
		total = -1
	}

	packets, err := container.Packets(stream.Index)
	if err != nil {
		return result, fmt.Errorf("read packets: %w", err)
	}

	writer, err := s.writers.Create(job.OutputPath)
	if err != nil {
		return result, err
	}
	finished := false
	defer func() {
		if !finished {
			writer.Close()
		}
	}()

	if err := writer.Start(sourceMetadata(job, stream, resolver)); err != nil {
		return result, fmt.Errorf("start output: %w", err)
	}

	var bar ports.Progress
	if input.ShowProgress && s.progress != nil {
		bar = s.progress.New(filepath.Base(job.InputPath), total)
		defer bar.Finish()
	}

	if err := s.write(ctx, packets, writer, resolver, job, bar, &result); err != nil {
		return result, err
	}

	if err := writer.Finish(); err != nil {
		return result, fmt.Errorf("finish output: %w", err)
	}
	finished = true

	if result.SkippedPackets > 0 {
		s.logger.Debug("Skipped %d packets without payload", result.SkippedPackets)
	}
	result.Elapsed = time.Since(began)
	return result, nil
}

// write streams every packet of the iterator into writer.
func (s *Stage) write(
	ctx context.Context,
	packets ports.PacketIterator,
	writer ports.LogWriter,
	resolver *timing.Resolver,
	job pipeline.ConversionJob,
	bar ports.Progress,
	result *pipeline.ConvertResult,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := packets.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("demux %s: %w", job.InputPath, err)
		}
		result.Packets++

		ts := resolver.Resolve(pkt)
		frame, ok := framemsg.Build(pkt, ts, job.FrameID)
		if !ok {
			result.SkippedPackets++
			continue
		}
		if ts < 0 {
			return fmt.Errorf("%w: packet %d at %d ns", pipeline.ErrNegativeTimestamp, pkt.Index, ts)
		}

		data, err := frame.Marshal()
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", pkt.Index, err)
		}
		logTime := uint64(ts)
		if err := writer.WriteMessage(job.Topic, data, logTime, logTime); err != nil {
			return fmt.Errorf("write frame %d: %w", pkt.Index, err)
		}

		if result.Frames == 0 {
			result.FirstTimestamp = ts
		}
		result.LastTimestamp = ts
		result.Frames++
		result.Bytes += int64(len(frame.Data))

		if bar != nil {
			bar.Add(1)
		}
	}
}

// count demuxes the stream once and returns the number of packets.
func (s *Stage) count(ctx context.Context, container ports.Container, index int) (int, error) {
	packets, err := container.Packets(index)
	if err != nil {
		return 0, fmt.Errorf("read packets: %w", err)
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, err := packets.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("count frames: %w", err)
		}
		n++
	}
}

// sourceMetadata describes the input in the output's metadata record.
// Nothing time-dependent goes in, so equal inputs give equal files.
func sourceMetadata(job pipeline.ConversionJob, stream ports.StreamInfo, resolver *timing.Resolver) ports.LogMetadata {
	fields := map[string]string{
		"input":      filepath.Base(job.InputPath),
		"codec":      stream.Codec,
		"width":      strconv.Itoa(stream.Width),
		"height":     strconv.Itoa(stream.Height),
		"timescale":  strconv.FormatUint(uint64(stream.Timescale), 10),
		"frame_rate": strconv.FormatFloat(resolver.FrameRate(), 'f', -1, 64),
		"frame_id":   job.FrameID,
	}
	if resolver.StartSource() != timing.StartFromWallClock {
		fields["start_time_ns"] = strconv.FormatInt(resolver.StartTime(), 10)
	}
	return ports.LogMetadata{Name: MetadataName, Fields: fields}
}

var _ pipeline.Stage[pipeline.ConvertInput, pipeline.ConvertResult] = (*Stage)(nil)
