// Package mp4fixture synthesises small MP4 files for tests, either
// fragmented (moof/mdat pairs) or progressive (one sample table and mdat).
//
// Sample payloads are written verbatim, so any byte pattern can be used;
// nothing is encoded or validated.
package mp4fixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Eyevinn/mp4ff/mp4"
)

const trackID = uint32(1)

// Sample is one access unit to place in the file.
type Sample struct {
	Data              []byte
	Dur               uint32 // In track timescale ticks
	CompositionOffset int32
	Keyframe          bool
}

// Options describes the file to build.
type Options struct {
	Timescale uint32 // Default 1000
	Width     uint16 // Default 320
	Height    uint16 // Default 240

	// StartDecodeTime is the decode time of the first sample.
	StartDecodeTime uint64

	Samples []Sample

	// SamplesPerFragment splits samples over several moof/mdat pairs.
	// Zero puts every sample in one fragment.
	SamplesPerFragment int

	// AudioOnly builds a file whose only track is an audio track.
	AudioOnly bool

	// Progressive writes one mdat addressed by the stbl sample table.
	// StartDecodeTime and SamplesPerFragment are ignored.
	Progressive bool

	// SamplesPerChunk groups progressive samples into stsc chunks. Zero
	// puts every sample in one chunk.
	SamplesPerChunk int

	// Co64 writes 64-bit chunk offsets instead of stco.
	Co64 bool

	// EditMediaTime adds an edit list whose single entry starts at this
	// media time. Zero writes no edts box.
	EditMediaTime int64
}

// Build returns the bytes of an MP4 file, fragmented unless Progressive
// is set.
func Build(opts Options) ([]byte, error) {
	if opts.Timescale == 0 {
		opts.Timescale = 1000
	}
	if opts.Width == 0 {
		opts.Width = 320
	}
	if opts.Height == 0 {
		opts.Height = 240
	}

	init := mp4.CreateEmptyInit()
	if opts.AudioOnly {
		init.AddEmptyTrack(opts.Timescale, "audio", "en")
	} else {
		init.AddEmptyTrack(opts.Timescale, "video", "en")
		trak := init.Moov.Trak
		avc1 := mp4.CreateVisualSampleEntryBox("avc1", opts.Width, opts.Height, nil)
		trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
		trak.Tkhd.Width = mp4.Fixed32(uint32(opts.Width) << 16)
		trak.Tkhd.Height = mp4.Fixed32(uint32(opts.Height) << 16)
	}

	if opts.EditMediaTime != 0 {
		addEditList(init.Moov.Trak, opts.EditMediaTime)
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if opts.Progressive {
		return buildProgressive(ftyp, init.Moov, opts)
	}

	var buf bytes.Buffer
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	perFragment := opts.SamplesPerFragment
	if perFragment <= 0 {
		perFragment = len(opts.Samples)
	}

	decodeTime := opts.StartDecodeTime
	seq := uint32(1)
	for start := 0; start < len(opts.Samples); start += perFragment {
		end := start + perFragment
		if end > len(opts.Samples) {
			end = len(opts.Samples)
		}

		frag, err := mp4.CreateFragment(seq, trackID)
		if err != nil {
			return nil, fmt.Errorf("create fragment: %w", err)
		}

		for _, s := range opts.Samples[start:end] {
			flags := mp4.NonSyncSampleFlags
			if s.Keyframe {
				flags = mp4.SyncSampleFlags
			}
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags:                 flags,
					Size:                  uint32(len(s.Data)),
					Dur:                   s.Dur,
					CompositionTimeOffset: s.CompositionOffset,
				},
				DecodeTime: decodeTime,
				Data:       s.Data,
			})
			decodeTime += uint64(s.Dur)
		}

		if err := frag.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode fragment %d: %w", seq, err)
		}
		seq++
	}

	return buf.Bytes(), nil
}

// buildProgressive fills the sample table of the first trak and writes
// ftyp, moov and a single mdat.
func buildProgressive(ftyp *mp4.FtypBox, moov *mp4.MoovBox, opts Options) ([]byte, error) {
	moov.Mvex = nil
	children := make([]mp4.Box, 0, len(moov.Children))
	for _, child := range moov.Children {
		if child.Type() != "mvex" {
			children = append(children, child)
		}
	}
	moov.Children = children

	stbl := moov.Trak.Mdia.Minf.Stbl
	stss := &mp4.StssBox{}
	var counts []uint32
	var offsets []int32
	hasOffsets := false
	mdat := &mp4.MdatBox{}
	for i, s := range opts.Samples {
		stbl.Stts.SampleCount = append(stbl.Stts.SampleCount, 1)
		stbl.Stts.SampleTimeDelta = append(stbl.Stts.SampleTimeDelta, s.Dur)
		stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(s.Data)))
		if s.Keyframe {
			stss.SampleNumber = append(stss.SampleNumber, uint32(i+1))
		}
		counts = append(counts, 1)
		offsets = append(offsets, s.CompositionOffset)
		if s.CompositionOffset != 0 {
			hasOffsets = true
		}
		mdat.AddSampleData(s.Data)
	}
	stbl.Stsz.SampleNumber = uint32(len(opts.Samples))
	stbl.AddChild(stss)
	if hasOffsets {
		ctts := &mp4.CttsBox{}
		for _, off := range offsets {
			if off < 0 {
				ctts.Version = 1
			}
		}
		if err := ctts.AddSampleCountsAndOffset(counts, offsets); err != nil {
			return nil, fmt.Errorf("fill ctts: %w", err)
		}
		stbl.AddChild(ctts)
	}

	perChunk := opts.SamplesPerChunk
	if perChunk <= 0 || perChunk > len(opts.Samples) {
		perChunk = len(opts.Samples)
	}
	var chunkSizes []uint64
	if perChunk > 0 {
		if err := stbl.Stsc.AddEntry(1, uint32(perChunk), 1); err != nil {
			return nil, fmt.Errorf("fill stsc: %w", err)
		}
		for start := 0; start < len(opts.Samples); start += perChunk {
			end := min(start+perChunk, len(opts.Samples))
			var size uint64
			for _, s := range opts.Samples[start:end] {
				size += uint64(len(s.Data))
			}
			chunkSizes = append(chunkSizes, size)
		}
		if rest := len(opts.Samples) % perChunk; rest != 0 {
			if err := stbl.Stsc.AddEntry(uint32(len(chunkSizes)), uint32(rest), 1); err != nil {
				return nil, fmt.Errorf("fill stsc: %w", err)
			}
		}
	}

	// Offsets are placeholders until the moov size is known. The entry
	// count fixes that size.
	var co64 *mp4.Co64Box
	if opts.Co64 {
		co64 = &mp4.Co64Box{ChunkOffset: make([]uint64, len(chunkSizes))}
		stblChildren := make([]mp4.Box, 0, len(stbl.Children))
		for _, child := range stbl.Children {
			if child.Type() != "stco" {
				stblChildren = append(stblChildren, child)
			}
		}
		stbl.Children = stblChildren
		stbl.Stco = nil
		stbl.AddChild(co64)
	} else {
		stbl.Stco.ChunkOffset = make([]uint32, len(chunkSizes))
	}

	offset := ftyp.Size() + moov.Size() + mdat.HeaderSize()
	for i, size := range chunkSizes {
		if co64 != nil {
			co64.ChunkOffset[i] = offset
		} else {
			stbl.Stco.ChunkOffset[i] = uint32(offset)
		}
		offset += size
	}

	var buf bytes.Buffer
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := mdat.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mdat: %w", err)
	}
	return buf.Bytes(), nil
}

// addEditList gives trak one edit starting at mediaTime.
func addEditList(trak *mp4.TrakBox, mediaTime int64) {
	elst := &mp4.ElstBox{
		Entries: []mp4.ElstEntry{{MediaTime: mediaTime, MediaRateInteger: 1}},
	}
	edts := &mp4.EdtsBox{Elst: []*mp4.ElstBox{elst}}
	edts.AddChild(elst)
	trak.AddChild(edts)
}

// WriteFile builds a file and writes it to path, creating parent directories.
func WriteFile(path string, opts Options) error {
	data, err := Build(opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AVCC joins NAL units with 4-byte big-endian length prefixes.
func AVCC(nalus ...[]byte) []byte {
	var out []byte
	for _, nalu := range nalus {
		out = binary.BigEndian.AppendUint32(out, uint32(len(nalu)))
		out = append(out, nalu...)
	}
	return out
}

// Frames returns n samples of duration dur with distinct payloads. The
// first sample is a keyframe.
func Frames(n int, dur uint32) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		nalType := byte(0x41) // non-IDR slice
		if i == 0 {
			nalType = 0x65 // IDR slice
		}
		samples[i] = Sample{
			Data:     AVCC([]byte{nalType, byte(i), byte(i >> 8), 0xAA}),
			Dur:      dur,
			Keyframe: i == 0,
		}
	}
	return samples
}
