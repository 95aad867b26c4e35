// Package mp4demuxer reads compressed samples from MP4 files using mp4ff.
//
// Both progressive files (sample tables in moov) and fragmented files
// (moof/mdat pairs) are supported. Samples are returned without decoding.
package mp4demuxer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

var (
	// ErrClosed is returned when reading from a closed container.
	ErrClosed = errors.New("mp4demuxer: container closed")

	// ErrNoMovie is returned when the file has no moov box.
	ErrNoMovie = errors.New("mp4demuxer: no moov box found")

	// ErrStreamIndex is returned for an out-of-range stream index.
	ErrStreamIndex = errors.New("mp4demuxer: stream index out of range")
)

// PayloadFormat selects how sample bytes are framed in packets.
type PayloadFormat string

const (
	// PayloadAVCC returns sample bytes exactly as stored (length-prefixed NAL units).
	PayloadAVCC PayloadFormat = "avcc"
	// PayloadAnnexB converts to start-code framing and prepends SPS/PPS on keyframes.
	PayloadAnnexB PayloadFormat = "annexb"
)

// ParsePayloadFormat validates a payload format name.
func ParsePayloadFormat(s string) (PayloadFormat, error) {
	switch PayloadFormat(s) {
	case PayloadAVCC, "":
		return PayloadAVCC, nil
	case PayloadAnnexB:
		return PayloadAnnexB, nil
	default:
		return "", fmt.Errorf("mp4demuxer: unknown payload format %q", s)
	}
}

// Options configures a Demuxer.
type Options struct {
	PayloadFormat PayloadFormat
}

// Demuxer opens MP4 files.
type Demuxer struct {
	opts Options
}

// New creates a new Demuxer.
func New(opts Options) *Demuxer {
	if opts.PayloadFormat == "" {
		opts.PayloadFormat = PayloadAVCC
	}
	return &Demuxer{opts: opts}
}

// Open opens and indexes the MP4 file at path.
func (d *Demuxer) Open(path string) (ports.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	c, err := NewContainer(f, d.opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	c.closer = f
	return c, nil
}

// Container is an opened MP4 file.
type Container struct {
	reader io.ReadSeeker
	closer io.Closer
	opts   Options
	tracks []*track
	closed bool
}

// NewContainer indexes an MP4 file from reader. The caller keeps ownership
// of reader; Close does not close it.
func NewContainer(reader io.ReadSeeker, opts Options) (*Container, error) {
	if opts.PayloadFormat == "" {
		opts.PayloadFormat = PayloadAVCC
	}

	mp4File, err := decodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	moov := mp4File.Moov
	if mp4File.Init != nil && mp4File.Init.Moov != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return nil, ErrNoMovie
	}

	c := &Container{
		reader: reader,
		opts:   opts,
	}

	for i, trak := range moov.Traks {
		t, err := newTrack(i, trak, moov, mp4File)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		c.tracks = append(c.tracks, t)
	}

	return c, nil
}

// decodeFile parses the box tree without loading mdat payloads. Fragment
// samples are resolved from mdat data, so fragmented files are decoded a
// second time in full.
func decodeFile(reader io.ReadSeeker) (*mp4.File, error) {
	mp4File, err := mp4.DecodeFile(reader, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, err
	}
	if !mp4File.IsFragmented() {
		return mp4File, nil
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}
	return mp4.DecodeFile(reader)
}

// Streams returns metadata for every track.
func (c *Container) Streams() []ports.StreamInfo {
	streams := make([]ports.StreamInfo, len(c.tracks))
	for i, t := range c.tracks {
		streams[i] = t.info
	}
	return streams
}

// VideoStream returns the first video track.
func (c *Container) VideoStream() (ports.StreamInfo, error) {
	for _, t := range c.tracks {
		if t.info.Kind == ports.StreamVideo {
			return t.info, nil
		}
	}
	return ports.StreamInfo{}, pipeline.ErrNoVideoStream
}

// Packets returns an iterator over the samples of the track at index.
func (c *Container) Packets(index int) (ports.PacketIterator, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(c.tracks) {
		return nil, fmt.Errorf("%w: %d", ErrStreamIndex, index)
	}
	return &packetIterator{container: c, track: c.tracks[index]}, nil
}

// Close releases the underlying file. It is safe to call more than once.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// packetIterator walks the samples of one track in decode order.
type packetIterator struct {
	container *Container
	track     *track
	next      int
}

// Next returns the next sample as a packet, or io.EOF.
func (it *packetIterator) Next() (ports.Packet, error) {
	if it.container.closed {
		return ports.Packet{}, ErrClosed
	}
	if it.next >= it.track.info.FrameCount {
		return ports.Packet{}, io.EOF
	}

	index := it.next
	it.next++

	pkt, err := it.track.packet(it.container.reader, index)
	if err != nil {
		return ports.Packet{}, fmt.Errorf("read sample %d: %w", index+1, err)
	}

	if it.container.opts.PayloadFormat == PayloadAnnexB && it.track.info.Codec == CodecH264 && pkt.Valid() {
		pkt.Data = toAnnexB(pkt.Data, it.track.paramSets, pkt.IsKeyframe)
	}

	return pkt, nil
}

var (
	_ ports.Demuxer   = (*Demuxer)(nil)
	_ ports.Container = (*Container)(nil)
)
