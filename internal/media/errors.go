package media

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInputNotFound is matched by every *NotFoundError.
	ErrInputNotFound = errors.New("input not found")
	// ErrLUTNotFound is returned when the LUT file a LUT resolves to does not exist.
	ErrLUTNotFound = errors.New("LUT file not found")
	// ErrUnknownTransition is returned for a transition outside the known set.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrUnknownLUT is returned for a LUT outside the known set.
	ErrUnknownLUT = errors.New("unknown LUT")
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when a duration or timestamp is negative or not a number.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrSplitFirstPart is returned when the part before the split point could not be written.
	ErrSplitFirstPart = errors.New("failed to create first part of the video")
	// ErrSplitSecondPart is returned when the part after the split point could not be written.
	ErrSplitSecondPart = errors.New("failed to create second part of the video")
	// ErrProbeFailed is returned when ffprobe could not run or exited non-zero.
	ErrProbeFailed = errors.New("ffprobe execution failed")
	// ErrMalformedProbeOutput is returned when ffprobe output is not the expected JSON.
	ErrMalformedProbeOutput = errors.New("malformed ffprobe output")
	// ErrNoVideoStream is returned when a probed file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrMissingDimensions is returned when the video stream carries no width or height.
	ErrMissingDimensions = errors.New("video stream has no dimensions")
)

// NotFoundError names a required input file that does not exist.
type NotFoundError struct {
	// What describes the role of the file, e.g. "first input video".
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// Is makes errors.Is(err, ErrInputNotFound) hold for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrInputNotFound
}

// FFmpegError represents a non-zero exit of ffmpeg, including the stderr output.
type FFmpegError struct {
	// Op is the operation that ran ffmpeg, e.g. "concatenate".
	Op       string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *FFmpegError) Error() string {
	msg := fmt.Sprintf("%s: ffmpeg exited with status %d", e.Op, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
