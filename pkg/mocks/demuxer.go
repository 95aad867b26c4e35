package mocks

import (
	"errors"
	"io"

	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

// ErrClosed is returned by Container iterators after Close.
var ErrClosed = errors.New("mocks: container closed")

// Demuxer is a mock implementation of ports.Demuxer.
type Demuxer struct {
	OpenFunc func(path string) (ports.Container, error)

	// Containers maps input paths to the container Open returns when
	// OpenFunc is nil.
	Containers map[string]*Container

	OpenCalls []string
}

func (m *Demuxer) Open(path string) (ports.Container, error) {
	m.OpenCalls = append(m.OpenCalls, path)
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	if c, ok := m.Containers[path]; ok {
		return c, nil
	}
	return nil, errors.New("mocks: no container for " + path)
}

// Container is a mock implementation of ports.Container that serves a
// fixed packet list for its first video stream.
type Container struct {
	StreamList []ports.StreamInfo
	PacketList []ports.Packet

	// NextErr, when set, is returned after NextErrAfter packets.
	NextErr      error
	NextErrAfter int

	PacketsFunc func(index int) (ports.PacketIterator, error)
	CloseFunc   func() error

	PacketsCalls int
	CloseCalls   int
	closed       bool
}

// NewVideoContainer returns a container with one video stream and packets.
func NewVideoContainer(stream ports.StreamInfo, packets []ports.Packet) *Container {
	stream.Kind = ports.StreamVideo
	if stream.Codec == "" {
		stream.Codec = "h264"
	}
	return &Container{
		StreamList: []ports.StreamInfo{stream},
		PacketList: packets,
	}
}

func (m *Container) Streams() []ports.StreamInfo {
	return m.StreamList
}

func (m *Container) VideoStream() (ports.StreamInfo, error) {
	for _, s := range m.StreamList {
		if s.Kind == ports.StreamVideo {
			return s, nil
		}
	}
	return ports.StreamInfo{}, pipeline.ErrNoVideoStream
}

func (m *Container) Packets(index int) (ports.PacketIterator, error) {
	m.PacketsCalls++
	if m.PacketsFunc != nil {
		return m.PacketsFunc(index)
	}
	if m.closed {
		return nil, ErrClosed
	}
	return &PacketIterator{container: m, packets: m.PacketList}, nil
}

func (m *Container) Close() error {
	m.CloseCalls++
	m.closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Closed reports whether Close was called.
func (m *Container) Closed() bool {
	return m.closed
}

// PacketIterator walks a packet slice.
type PacketIterator struct {
	container *Container
	packets   []ports.Packet
	next      int
}

// NewPacketIterator returns an iterator over packets.
func NewPacketIterator(packets []ports.Packet) *PacketIterator {
	return &PacketIterator{packets: packets}
}

func (it *PacketIterator) Next() (ports.Packet, error) {
	if it.container != nil {
		if it.container.closed {
			return ports.Packet{}, ErrClosed
		}
		if it.container.NextErr != nil && it.next >= it.container.NextErrAfter {
			return ports.Packet{}, it.container.NextErr
		}
	}
	if it.next >= len(it.packets) {
		return ports.Packet{}, io.EOF
	}
	pkt := it.packets[it.next]
	it.next++
	return pkt, nil
}

var (
	_ ports.Demuxer        = (*Demuxer)(nil)
	_ ports.Container      = (*Container)(nil)
	_ ports.PacketIterator = (*PacketIterator)(nil)
)
