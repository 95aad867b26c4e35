package mp4demuxer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/mp4mcap/pkg/mp4fixture"
	"github.com/user/mp4mcap/pkg/pipeline"
	"github.com/user/mp4mcap/pkg/ports"
)

func writeFixture(t *testing.T, opts mp4fixture.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp4")
	if err := mp4fixture.WriteFile(path, opts); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func readAll(t *testing.T, it ports.PacketIterator) []ports.Packet {
	t.Helper()
	var packets []ports.Packet
	for {
		pkt, err := it.Next()
		if errors.Is(err, io.EOF) {
			return packets
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		packets = append(packets, pkt)
	}
}

func TestDemuxer_OpenFragmented(t *testing.T) {
	samples := mp4fixture.Frames(10, 1000)
	path := writeFixture(t, mp4fixture.Options{
		Timescale: 1000,
		Width:     640,
		Height:    480,
		Samples:   samples,
	})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	streams := c.Streams()
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(streams))
	}

	video, err := c.VideoStream()
	if err != nil {
		t.Fatalf("VideoStream failed: %v", err)
	}
	if video.Kind != ports.StreamVideo {
		t.Errorf("expected video kind, got %s", video.Kind)
	}
	if video.Codec != CodecH264 {
		t.Errorf("expected codec h264, got %s", video.Codec)
	}
	if video.Timescale != 1000 {
		t.Errorf("expected timescale 1000, got %d", video.Timescale)
	}
	if video.FrameCount != 10 {
		t.Errorf("expected 10 frames, got %d", video.FrameCount)
	}
	if video.AverageFrameRate != 1.0 {
		t.Errorf("expected frame rate 1.0, got %v", video.AverageFrameRate)
	}
	if video.Width != 640 || video.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", video.Width, video.Height)
	}
	if !video.HasStartTime || video.StartTime != 0 {
		t.Errorf("expected start time 0, got %d (has=%v)", video.StartTime, video.HasStartTime)
	}

	it, err := c.Packets(video.Index)
	if err != nil {
		t.Fatalf("Packets failed: %v", err)
	}
	packets := readAll(t, it)
	if len(packets) != 10 {
		t.Fatalf("expected 10 packets, got %d", len(packets))
	}

	for i, pkt := range packets {
		if pkt.Index != i {
			t.Errorf("packet %d: expected index %d, got %d", i, i, pkt.Index)
		}
		if !pkt.HasPTS || pkt.PTS != int64(i*1000) {
			t.Errorf("packet %d: expected PTS %d, got %d (has=%v)", i, i*1000, pkt.PTS, pkt.HasPTS)
		}
		if !bytes.Equal(pkt.Data, samples[i].Data) {
			t.Errorf("packet %d: payload mismatch", i)
		}
		if pkt.IsKeyframe != (i == 0) {
			t.Errorf("packet %d: expected keyframe=%v", i, i == 0)
		}
	}

	// The iterator is finite and stays exhausted.
	if _, err := it.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}
}

func TestDemuxer_MultipleFragments(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{
		Timescale:          90000,
		StartDecodeTime:    9000,
		Samples:            mp4fixture.Frames(7, 3600),
		SamplesPerFragment: 3,
	})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	video, err := c.VideoStream()
	if err != nil {
		t.Fatalf("VideoStream failed: %v", err)
	}
	if video.AverageFrameRate != 25 {
		t.Errorf("expected 25 fps, got %v", video.AverageFrameRate)
	}
	if video.StartTime != 9000 {
		t.Errorf("expected start time 9000, got %d", video.StartTime)
	}

	it, _ := c.Packets(video.Index)
	packets := readAll(t, it)
	if len(packets) != 7 {
		t.Fatalf("expected 7 packets, got %d", len(packets))
	}
	for i, pkt := range packets {
		want := int64(9000 + i*3600)
		if pkt.PTS != want {
			t.Errorf("packet %d: expected PTS %d, got %d", i, want, pkt.PTS)
		}
	}
}

func TestDemuxer_CompositionOffset(t *testing.T) {
	samples := mp4fixture.Frames(3, 100)
	samples[1].CompositionOffset = 200
	path := writeFixture(t, mp4fixture.Options{Timescale: 1000, Samples: samples})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	want := []int64{0, 300, 200}
	for i, pkt := range packets {
		if pkt.PTS != want[i] {
			t.Errorf("packet %d: expected PTS %d, got %d", i, want[i], pkt.PTS)
		}
	}
}

func TestDemuxer_OpenProgressive(t *testing.T) {
	samples := mp4fixture.Frames(7, 3600)
	samples[3].Keyframe = true
	samples[1].CompositionOffset = 7200
	samples[2].CompositionOffset = -3600
	path := writeFixture(t, mp4fixture.Options{
		Timescale:       90000,
		Width:           1280,
		Height:          720,
		Samples:         samples,
		Progressive:     true,
		SamplesPerChunk: 3,
	})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	video, err := c.VideoStream()
	if err != nil {
		t.Fatalf("VideoStream failed: %v", err)
	}
	if video.FrameCount != 7 {
		t.Errorf("expected 7 frames, got %d", video.FrameCount)
	}
	if video.AverageFrameRate != 25 {
		t.Errorf("expected 25 fps, got %v", video.AverageFrameRate)
	}
	if video.Width != 1280 || video.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", video.Width, video.Height)
	}
	if !video.HasStartTime || video.StartTime != 0 {
		t.Errorf("expected start time 0, got %d (has=%v)", video.StartTime, video.HasStartTime)
	}

	it, err := c.Packets(video.Index)
	if err != nil {
		t.Fatalf("Packets failed: %v", err)
	}
	packets := readAll(t, it)
	if len(packets) != 7 {
		t.Fatalf("expected 7 packets, got %d", len(packets))
	}

	wantPTS := []int64{0, 10800, 3600, 10800, 14400, 18000, 21600}
	for i, pkt := range packets {
		if !bytes.Equal(pkt.Data, samples[i].Data) {
			t.Errorf("packet %d: expected payload %x, got %x", i, samples[i].Data, pkt.Data)
		}
		if !pkt.HasPTS || pkt.PTS != wantPTS[i] {
			t.Errorf("packet %d: expected PTS %d, got %d (has=%v)", i, wantPTS[i], pkt.PTS, pkt.HasPTS)
		}
		wantKey := i == 0 || i == 3
		if pkt.IsKeyframe != wantKey {
			t.Errorf("packet %d: expected keyframe=%v", i, wantKey)
		}
	}
}

func TestDemuxer_ProgressiveChunkOffsets(t *testing.T) {
	tests := []struct {
		name     string
		perChunk int
		co64     bool
	}{
		{"single chunk stco", 0, false},
		{"short last chunk stco", 4, false},
		{"one sample per chunk co64", 1, true},
		{"short last chunk co64", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := mp4fixture.Frames(10, 40)
			data, err := mp4fixture.Build(mp4fixture.Options{
				Samples:         samples,
				Progressive:     true,
				SamplesPerChunk: tt.perChunk,
				Co64:            tt.co64,
			})
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			c, err := NewContainer(bytes.NewReader(data), Options{})
			if err != nil {
				t.Fatalf("NewContainer failed: %v", err)
			}
			defer c.Close()

			stbl := c.tracks[0].stbl
			if tt.co64 && (stbl.Co64 == nil || stbl.Stco != nil) {
				t.Fatal("expected a co64 box only")
			}
			if !tt.co64 && stbl.Stco == nil {
				t.Fatal("expected an stco box")
			}

			it, _ := c.Packets(0)
			packets := readAll(t, it)
			if len(packets) != len(samples) {
				t.Fatalf("expected %d packets, got %d", len(samples), len(packets))
			}
			for i, pkt := range packets {
				if !bytes.Equal(pkt.Data, samples[i].Data) {
					t.Errorf("packet %d: expected payload %x, got %x", i, samples[i].Data, pkt.Data)
				}
				if pkt.PTS != int64(i*40) {
					t.Errorf("packet %d: expected PTS %d, got %d", i, i*40, pkt.PTS)
				}
			}
		})
	}
}

func TestDemuxer_ProgressiveEmptyPayload(t *testing.T) {
	samples := mp4fixture.Frames(3, 100)
	samples[1].Data = nil
	path := writeFixture(t, mp4fixture.Options{Samples: samples, Progressive: true})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}
	if packets[1].Valid() {
		t.Error("expected empty sample to yield an invalid packet")
	}
	if !bytes.Equal(packets[2].Data, samples[2].Data) {
		t.Errorf("expected sample after the empty one to be intact, got %x", packets[2].Data)
	}
}

func TestDemuxer_ProgressiveAnnexB(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{Samples: mp4fixture.Frames(2, 100), Progressive: true})

	c, err := New(Options{PayloadFormat: PayloadAnnexB}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	want := []byte{0, 0, 0, 1, 0x41, 1, 0, 0xAA}
	if !bytes.Equal(packets[1].Data, want) {
		t.Errorf("expected %x, got %x", want, packets[1].Data)
	}
}

// Edit lists are not applied; timestamps stay on the media timeline.
func TestDemuxer_EditListKeepsMediaTime(t *testing.T) {
	samples := mp4fixture.Frames(3, 3000)
	for i := range samples {
		samples[i].CompositionOffset = 6000
	}

	for _, progressive := range []bool{true, false} {
		path := writeFixture(t, mp4fixture.Options{
			Timescale:     90000,
			Samples:       samples,
			Progressive:   progressive,
			EditMediaTime: 6000,
		})

		c, err := New(Options{}).Open(path)
		if err != nil {
			t.Fatalf("Open failed (progressive=%v): %v", progressive, err)
		}

		video, err := c.VideoStream()
		if err != nil {
			t.Fatalf("VideoStream failed: %v", err)
		}
		if video.StartTime != 6000 {
			t.Errorf("progressive=%v: expected start time 6000, got %d", progressive, video.StartTime)
		}

		it, _ := c.Packets(video.Index)
		for i, pkt := range readAll(t, it) {
			want := int64(6000 + i*3000)
			if pkt.PTS != want {
				t.Errorf("progressive=%v packet %d: expected PTS %d, got %d", progressive, i, want, pkt.PTS)
			}
		}
		c.Close()
	}
}

// countingReader records how many bytes were read through it.
type countingReader struct {
	io.ReadSeeker
	n int
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.ReadSeeker.Read(p)
	r.n += n
	return n, err
}

func TestNewContainer_SkipsProgressiveMediaData(t *testing.T) {
	samples := make([]mp4fixture.Sample, 20)
	for i := range samples {
		payload := bytes.Repeat([]byte{byte(i)}, 16*1024)
		samples[i] = mp4fixture.Sample{Data: mp4fixture.AVCC(payload), Dur: 40, Keyframe: i == 0}
	}
	data, err := mp4fixture.Build(mp4fixture.Options{Samples: samples, Progressive: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	reader := &countingReader{ReadSeeker: bytes.NewReader(data)}
	c, err := NewContainer(reader, Options{})
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer c.Close()

	if reader.n > 16*1024 {
		t.Errorf("expected media data to stay unread while indexing, read %d of %d bytes", reader.n, len(data))
	}

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	if len(packets) != 20 || !bytes.Equal(packets[19].Data, samples[19].Data) {
		t.Errorf("expected all 20 samples to be readable after indexing")
	}
}

func TestNewContainer_FragmentedFromReader(t *testing.T) {
	samples := mp4fixture.Frames(6, 100)
	data, err := mp4fixture.Build(mp4fixture.Options{Samples: samples, SamplesPerFragment: 2})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	c, err := NewContainer(bytes.NewReader(data), Options{})
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	if len(packets) != 6 {
		t.Fatalf("expected 6 packets, got %d", len(packets))
	}
	for i, pkt := range packets {
		if !bytes.Equal(pkt.Data, samples[i].Data) {
			t.Errorf("packet %d: payload mismatch", i)
		}
	}
}

func TestDemuxer_EmptyPayload(t *testing.T) {
	samples := mp4fixture.Frames(3, 100)
	samples[1].Data = nil
	path := writeFixture(t, mp4fixture.Options{Samples: samples})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}
	if packets[1].Valid() {
		t.Error("expected empty sample to yield an invalid packet")
	}
	if !packets[0].Valid() || !packets[2].Valid() {
		t.Error("expected other packets to be valid")
	}
}

func TestDemuxer_NoSamples(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	video, err := c.VideoStream()
	if err != nil {
		t.Fatalf("VideoStream failed: %v", err)
	}
	if video.FrameCount != 0 {
		t.Errorf("expected 0 frames, got %d", video.FrameCount)
	}
	if video.AverageFrameRate != 0 {
		t.Errorf("expected no frame rate, got %v", video.AverageFrameRate)
	}

	it, _ := c.Packets(video.Index)
	if _, err := it.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDemuxer_NoVideoStream(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{AudioOnly: true, Timescale: 48000})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if _, err := c.VideoStream(); !errors.Is(err, pipeline.ErrNoVideoStream) {
		t.Errorf("expected ErrNoVideoStream, got %v", err)
	}
	if streams := c.Streams(); len(streams) != 1 || streams[0].Kind != ports.StreamAudio {
		t.Errorf("expected a single audio stream, got %+v", streams)
	}
}

func TestDemuxer_AnnexB(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{Samples: mp4fixture.Frames(2, 100)})

	c, err := New(Options{PayloadFormat: PayloadAnnexB}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	it, _ := c.Packets(0)
	packets := readAll(t, it)
	want := []byte{0, 0, 0, 1, 0x41, 1, 0, 0xAA}
	if !bytes.Equal(packets[1].Data, want) {
		t.Errorf("expected %x, got %x", want, packets[1].Data)
	}
}

func TestDemuxer_Close(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{Samples: mp4fixture.Frames(2, 100)})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	it, _ := c.Packets(0)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := c.Packets(0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Packets, got %v", err)
	}
}

func TestDemuxer_StreamIndexOutOfRange(t *testing.T) {
	path := writeFixture(t, mp4fixture.Options{Samples: mp4fixture.Frames(1, 100)})

	c, err := New(Options{}).Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Packets(5); !errors.Is(err, ErrStreamIndex) {
		t.Errorf("expected ErrStreamIndex, got %v", err)
	}
}

func TestDemuxer_OpenErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := New(Options{}).Open(filepath.Join(dir, "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}

	garbage := filepath.Join(dir, "garbage.mp4")
	if err := os.WriteFile(garbage, []byte("definitely not an mp4 file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{}).Open(garbage); err == nil {
		t.Error("expected error for invalid file")
	}
}

func TestParsePayloadFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    PayloadFormat
		wantErr bool
	}{
		{"", PayloadAVCC, false},
		{"avcc", PayloadAVCC, false},
		{"annexb", PayloadAnnexB, false},
		{"raw", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePayloadFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePayloadFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePayloadFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
