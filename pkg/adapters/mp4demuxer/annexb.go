package mp4demuxer

import (
	"encoding/binary"

	"github.com/Eyevinn/mp4ff/mp4"
)

var startCode = []byte{0, 0, 0, 1}

// parameterSets returns the SPS and PPS of an avcC box in Annex B framing.
func parameterSets(avcC *mp4.AvcCBox) []byte {
	var out []byte
	for _, sps := range avcC.SPSnalus {
		out = append(out, startCode...)
		out = append(out, sps...)
	}
	for _, pps := range avcC.PPSnalus {
		out = append(out, startCode...)
		out = append(out, pps...)
	}
	return out
}

// toAnnexB converts length-prefixed NAL units to start-code framing and
// prepends the parameter sets on keyframes. A truncated trailing NAL unit
// is dropped.
func toAnnexB(avcc []byte, paramSets []byte, keyframe bool) []byte {
	size := len(avcc)
	if keyframe {
		size += len(paramSets)
	}
	out := make([]byte, 0, size)
	if keyframe {
		out = append(out, paramSets...)
	}

	for offset := 0; offset+4 <= len(avcc); {
		naluLen := int(binary.BigEndian.Uint32(avcc[offset:]))
		offset += 4
		if naluLen > len(avcc)-offset {
			break
		}
		out = append(out, startCode...)
		out = append(out, avcc[offset:offset+naluLen]...)
		offset += naluLen
	}

	return out
}
