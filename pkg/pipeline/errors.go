package pipeline

import "errors"

var (
	// ErrNoInputFound is returned when no input path resolves to an MP4 file.
	ErrNoInputFound = errors.New("pipeline: no matching input files")

	// ErrNoOutputDir is returned when a batch has no output directory.
	ErrNoOutputDir = errors.New("pipeline: output directory not set")

	// ErrNoVideoStream is returned when a container has no video stream.
	ErrNoVideoStream = errors.New("pipeline: no video stream")

	// ErrUnsupportedCodec is returned when the video stream is not H.264.
	ErrUnsupportedCodec = errors.New("pipeline: unsupported video codec")

	// ErrNegativeTimestamp is returned when a frame resolves to a time
	// before the Unix epoch, which a log container cannot represent.
	ErrNegativeTimestamp = errors.New("pipeline: negative frame timestamp")
)
