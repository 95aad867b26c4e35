// Package framemsg builds compressed video frame records and encodes them as
// foxglove.CompressedVideo protobuf messages.
package framemsg

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/user/mp4mcap/pkg/ports"
)

// FormatH264 is the only format tag this tool emits.
const FormatH264 = "h264"

// Field numbers of foxglove.CompressedVideo.
const (
	fieldTimestamp protowire.Number = 1
	fieldFrameID   protowire.Number = 2
	fieldData      protowire.Number = 3
	fieldFormat    protowire.Number = 4
)

// ErrMalformed is returned when a message cannot be decoded.
var ErrMalformed = errors.New("framemsg: malformed message")

// CompressedFrame is one compressed video access unit with its capture time.
type CompressedFrame struct {
	TimestampNs int64
	FrameID     string
	Data        []byte
	Format      string
}

// Build wraps a packet into a CompressedFrame. It returns false for packets
// without payload. The payload is copied so the frame never aliases a
// reader buffer.
func Build(pkt ports.Packet, timestampNs int64, frameID string) (CompressedFrame, bool) {
	if !pkt.Valid() {
		return CompressedFrame{}, false
	}
	return CompressedFrame{
		TimestampNs: timestampNs,
		FrameID:     frameID,
		Data:        bytes.Clone(pkt.Data),
		Format:      FormatH264,
	}, true
}

// Time returns the frame timestamp as a time.Time.
func (f CompressedFrame) Time() time.Time {
	return time.Unix(0, f.TimestampNs).UTC()
}

// Marshal encodes the frame in protobuf wire format. Fields are written in
// field-number order, so equal frames always produce equal bytes.
func (f CompressedFrame) Marshal() ([]byte, error) {
	ts, err := proto.MarshalOptions{Deterministic: true}.Marshal(timestamppb.New(f.Time()))
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}

	size := len(ts) + len(f.FrameID) + len(f.Data) + len(f.Format) + 32
	b := make([]byte, 0, size)

	b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	if f.FrameID != "" {
		b = protowire.AppendTag(b, fieldFrameID, protowire.BytesType)
		b = protowire.AppendString(b, f.FrameID)
	}
	if len(f.Data) > 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Data)
	}
	if f.Format != "" {
		b = protowire.AppendTag(b, fieldFormat, protowire.BytesType)
		b = protowire.AppendString(b, f.Format)
	}

	return b, nil
}

// Unmarshal decodes a foxglove.CompressedVideo message. Unknown fields are
// skipped.
func Unmarshal(b []byte) (CompressedFrame, error) {
	var f CompressedFrame

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return f, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTimestamp:
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return f, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
			}
			f.TimestampNs = ts.AsTime().UnixNano()
		case fieldFrameID:
			f.FrameID = string(v)
		case fieldData:
			f.Data = bytes.Clone(v)
		case fieldFormat:
			f.Format = string(v)
		}
	}

	return f, nil
}
