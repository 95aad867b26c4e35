package mp4demuxer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/mp4mcap/pkg/ports"
)

// track holds the sample index of one trak.
type track struct {
	info      ports.StreamInfo
	paramSets []byte // SPS/PPS in Annex B framing, from avcC

	// Progressive files read samples through the sample table.
	trak *mp4.TrakBox
	stbl *mp4.StblBox

	// Fragmented files collect samples from every fragment up front.
	// Data slices point into the decoded mdat boxes.
	fragmented bool
	samples    []mp4.FullSample
}

func newTrack(index int, trak *mp4.TrakBox, moov *mp4.MoovBox, mp4File *mp4.File) (*track, error) {
	t := &track{
		trak: trak,
		info: ports.StreamInfo{
			Index: index,
			Kind:  ports.StreamOther,
			Codec: CodecUnknown,
		},
	}

	if trak.Tkhd != nil {
		t.info.TrackID = trak.Tkhd.TrackID
		t.info.Width = int(uint32(trak.Tkhd.Width) >> 16)
		t.info.Height = int(uint32(trak.Tkhd.Height) >> 16)
	}

	if trak.Mdia == nil {
		return t, nil
	}
	if trak.Mdia.Hdlr != nil {
		t.info.Kind = streamKind(trak.Mdia.Hdlr.HandlerType)
	}
	if trak.Mdia.Mdhd != nil {
		t.info.Timescale = trak.Mdia.Mdhd.Timescale
	}

	if trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil {
		t.stbl = trak.Mdia.Minf.Stbl
		if t.stbl.Stsd != nil {
			for _, child := range t.stbl.Stsd.Children {
				t.info.Codec = codecFromSampleEntry(child.Type())
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
					t.info.Width = int(vse.Width)
					t.info.Height = int(vse.Height)
					if vse.AvcC != nil {
						t.paramSets = parameterSets(vse.AvcC)
					}
				}
				break
			}
		}
	}

	if mp4File.IsFragmented() {
		if err := t.indexFragments(moov, mp4File); err != nil {
			return nil, err
		}
	} else {
		t.indexSampleTable()
	}

	return t, nil
}

// indexSampleTable fills stream statistics from stts/stsz/ctts.
func (t *track) indexSampleTable() {
	if t.stbl == nil || t.stbl.Stsz == nil {
		return
	}
	t.info.FrameCount = int(t.stbl.Stsz.SampleNumber)

	var total uint64
	if t.stbl.Stts != nil {
		for i := range t.stbl.Stts.SampleCount {
			total += uint64(t.stbl.Stts.SampleCount[i]) * uint64(t.stbl.Stts.SampleTimeDelta[i])
		}
	}
	t.setFrameRate(total)

	if t.info.FrameCount > 0 && t.hasTiming() {
		t.info.StartTime = t.presentationTime(1)
		t.info.HasStartTime = true
	}
}

// indexFragments collects the samples of this track from every fragment.
func (t *track) indexFragments(moov *mp4.MoovBox, mp4File *mp4.File) error {
	t.fragmented = true

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, tx := range moov.Mvex.Trexs {
			if tx.TrackID == t.info.TrackID {
				trex = tx
				break
			}
		}
	}

	var total uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || frag.Moof.Traf == nil {
				continue
			}
			if trex == nil && frag.Moof.Traf.Tfhd.TrackID != t.info.TrackID {
				continue
			}

			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				total += uint64(s.Dur)
			}
			t.samples = append(t.samples, samples...)
		}
	}

	t.info.FrameCount = len(t.samples)
	t.setFrameRate(total)

	if len(t.samples) > 0 && t.info.Timescale > 0 {
		first := t.samples[0]
		t.info.StartTime = int64(first.DecodeTime) + int64(first.CompositionTimeOffset)
		t.info.HasStartTime = true
	}
	return nil
}

func (t *track) setFrameRate(totalDuration uint64) {
	if totalDuration == 0 || t.info.Timescale == 0 || t.info.FrameCount == 0 {
		return
	}
	t.info.AverageFrameRate = float64(t.info.FrameCount) * float64(t.info.Timescale) / float64(totalDuration)
}

func (t *track) hasTiming() bool {
	if t.info.Timescale == 0 {
		return false
	}
	return t.fragmented || (t.stbl != nil && t.stbl.Stts != nil)
}

// presentationTime returns decode time plus composition offset for a
// 1-based sample number of a progressive track.
func (t *track) presentationTime(sampleNr uint32) int64 {
	decodeTime, _ := t.stbl.Stts.GetDecodeTime(sampleNr)
	pts := int64(decodeTime)
	if t.stbl.Ctts != nil {
		pts += int64(t.stbl.Ctts.GetCompositionTimeOffset(sampleNr))
	}
	return pts
}

// packet reads the sample at 0-based index.
func (t *track) packet(reader io.ReadSeeker, index int) (ports.Packet, error) {
	if t.fragmented {
		s := t.samples[index]
		return ports.Packet{
			Data:       bytes.Clone(s.Data),
			PTS:        int64(s.DecodeTime) + int64(s.CompositionTimeOffset),
			HasPTS:     t.hasTiming(),
			IsKeyframe: !mp4.DecodeSampleFlags(s.Flags).SampleIsNonSync,
			Index:      index,
		}, nil
	}

	sampleNr := uint32(index + 1)
	data, err := readSample(t.trak, reader, sampleNr)
	if err != nil {
		return ports.Packet{}, err
	}

	pkt := ports.Packet{
		Data:       data,
		IsKeyframe: t.isSyncSample(sampleNr),
		Index:      index,
	}
	if t.hasTiming() {
		pkt.PTS = t.presentationTime(sampleNr)
		pkt.HasPTS = true
	}
	return pkt, nil
}

// isSyncSample reports whether a progressive sample is a keyframe. Without
// an stss box every sample is a sync sample.
func (t *track) isSyncSample(sampleNr uint32) bool {
	if t.stbl.Stss == nil {
		return true
	}
	return t.stbl.Stss.IsSyncSample(sampleNr)
}

// readSample reads one sample of a progressive file through the sample
// table of trak.
func readSample(trak *mp4.TrakBox, reader io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("missing stbl box")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}
	if stbl.Stco == nil && stbl.Co64 == nil {
		return nil, fmt.Errorf("no stco or co64 box")
	}

	if stbl.Stsz.GetSampleSize(int(sampleNr)) == 0 {
		return nil, nil
	}

	ranges, err := trak.GetRangesForSampleInterval(sampleNr, sampleNr)
	if err != nil {
		return nil, fmt.Errorf("locate sample %d: %w", sampleNr, err)
	}
	if len(ranges) != 1 {
		return nil, fmt.Errorf("sample %d spans %d chunks", sampleNr, len(ranges))
	}

	if _, err := reader.Seek(int64(ranges[0].Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, ranges[0].Size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}
