// Package timing derives absolute capture times for demuxed packets.
package timing

import (
	"time"

	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

const nanosPerSecond = int64(time.Second)

// Options configures a Resolver.
type Options struct {
	// GlobalStartTimeNs overrides every other start time source when set.
	GlobalStartTimeNs *int64

	// DefaultFrameRate is used when the stream reports none.
	DefaultFrameRate float64

	// Now returns the wall clock; time.Now when nil.
	Now func() time.Time
}

// FromPipeline converts pipeline timing options.
func FromPipeline(opts pipeline.TimingOptions) Options {
	return Options{
		GlobalStartTimeNs: opts.GlobalStartTimeNs,
		DefaultFrameRate:  opts.DefaultFrameRate,
	}
}

// StartSource names where a Resolver took its start time from.
type StartSource string

const (
	StartFromGlobal    StartSource = "global"
	StartFromStream    StartSource = "stream"
	StartFromWallClock StartSource = "wallclock"
)

// Resolver computes nanosecond timestamps for the packets of one stream.
//
// A packet with a PTS is converted with the stream time base. A packet
// without one is placed at start + index*frameDuration.
type Resolver struct {
	timescale     uint32
	startNs       int64
	startSource   StartSource
	frameRate     float64
	frameDuration int64
}

// NewResolver resolves the start time and frame rate for stream.
func NewResolver(stream ports.StreamInfo, opts Options) *Resolver {
	r := &Resolver{timescale: stream.Timescale}

	r.frameRate = stream.AverageFrameRate
	if r.frameRate <= 0 {
		r.frameRate = opts.DefaultFrameRate
	}
	if r.frameRate <= 0 {
		r.frameRate = pipeline.DefaultFrameRate
	}
	r.frameDuration = int64(float64(nanosPerSecond) / r.frameRate)

	switch {
	case opts.GlobalStartTimeNs != nil:
		r.startNs = *opts.GlobalStartTimeNs
		r.startSource = StartFromGlobal
	case stream.HasStartTime && stream.Timescale > 0:
		r.startNs = ToNanoseconds(stream.StartTime, stream.Timescale)
		r.startSource = StartFromStream
	default:
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		r.startNs = now().UnixNano()
		r.startSource = StartFromWallClock
	}

	return r
}

// Resolve returns the timestamp of pkt in nanoseconds.
func (r *Resolver) Resolve(pkt ports.Packet) int64 {
	if pkt.HasPTS && r.timescale > 0 {
		return ToNanoseconds(pkt.PTS, r.timescale)
	}
	return r.startNs + int64(pkt.Index)*r.frameDuration
}

// StartTime returns the resolved start time in nanoseconds.
func (r *Resolver) StartTime() int64 {
	return r.startNs
}

// StartSource reports which source the start time came from.
func (r *Resolver) StartSource() StartSource {
	return r.startSource
}

// FrameRate returns the frame rate used for extrapolation.
func (r *Resolver) FrameRate() float64 {
	return r.frameRate
}

// FrameDuration returns the extrapolation step in nanoseconds.
func (r *Resolver) FrameDuration() int64 {
	return r.frameDuration
}

// ToNanoseconds converts ticks of a 1/timescale time base to nanoseconds
// without intermediate overflow. The result is truncated toward zero.
func ToNanoseconds(ticks int64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	ts := int64(timescale)
	whole := ticks / ts
	rem := ticks % ts
	return whole*nanosPerSecond + rem*nanosPerSecond/ts
}
