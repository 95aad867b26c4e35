package ports

// StreamKind classifies an elementary stream inside a container.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
	StreamOther StreamKind = "other"
)

// StreamInfo describes one elementary stream of an opened container.
type StreamInfo struct {
	Index   int    // Position in Container.Streams()
	TrackID uint32 // Container-level track identifier
	Kind    StreamKind
	Codec   string // "h264", "hevc", "av1", "aac", or the raw sample entry type
	Width   int
	Height  int

	// Timescale is the number of ticks per second; the stream time base is
	// 1/Timescale. Zero means the stream carries no usable timing.
	Timescale uint32

	// AverageFrameRate is zero when the container does not allow computing it.
	AverageFrameRate float64

	// StartTime is the presentation time of the first sample, in ticks.
	StartTime    int64
	HasStartTime bool

	// FrameCount is the sample count recorded in the container index.
	FrameCount int
}

// Packet is one compressed access unit read from a stream.
type Packet struct {
	Data []byte // Owned by the caller; never reused by the iterator

	// PTS is the presentation timestamp in stream ticks. It is only
	// meaningful when HasPTS is set; a zero PTS is a real timestamp.
	PTS    int64
	HasPTS bool

	IsKeyframe bool
	Index      int // 0-based position in demux order, counting skipped packets
}

// Valid reports whether the packet carries a payload.
func (p Packet) Valid() bool {
	return len(p.Data) > 0
}

// PacketIterator yields the packets of one stream in demux order.
// It is finite and cannot be restarted.
type PacketIterator interface {
	// Next returns the next packet, or io.EOF once the stream is exhausted.
	Next() (Packet, error)
}

// Container is an opened media file.
type Container interface {
	// Streams returns metadata for every stream in the container.
	Streams() []StreamInfo

	// VideoStream returns the first video stream.
	VideoStream() (StreamInfo, error)

	// Packets returns an iterator over the packets of the stream at index.
	Packets(index int) (PacketIterator, error)

	// Close releases the underlying file. Iterators become invalid.
	Close() error
}

// Demuxer opens media containers.
type Demuxer interface {
	Open(path string) (Container, error)
}
