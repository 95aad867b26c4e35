package mp4demuxer

import "github.com/user/mp4mcap/pkg/ports"

// Codec names reported in ports.StreamInfo.Codec.
const (
	CodecH264    = "h264"
	CodecHEVC    = "hevc"
	CodecAV1     = "av1"
	CodecAAC     = "aac"
	CodecUnknown = "unknown"
)

// codecFromSampleEntry maps an stsd sample entry type to a codec name.
func codecFromSampleEntry(entryType string) string {
	switch entryType {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecHEVC
	case "av01":
		return CodecAV1
	case "mp4a":
		return CodecAAC
	case "":
		return CodecUnknown
	default:
		return entryType
	}
}

func streamKind(handlerType string) ports.StreamKind {
	switch handlerType {
	case "vide":
		return ports.StreamVideo
	case "soun":
		return ports.StreamAudio
	default:
		return ports.StreamOther
	}
}
