// Package media provides the video operations backed by the ffmpeg and ffprobe CLIs.
package media

import "context"

// Processor defines the media operations offered on top of ffmpeg.
// Every operation checks that its inputs exist before any process is spawned,
// forces the output to be overwritten, and blocks until ffmpeg exits.
type Processor interface {
	// Concatenate joins two videos (video and audio) back to back and re-encodes
	// the result with the configured codecs.
	Concatenate(ctx context.Context, req ConcatenateRequest) error

	// Split cuts a video in two at req.At seconds using stream copy.
	// The second part is only produced when the first one succeeded.
	Split(ctx context.Context, req SplitRequest) error

	// MergeWithTransition joins two videos with an xfade transition on video
	// and an acrossfade on audio.
	MergeWithTransition(ctx context.Context, req TransitionRequest) error

	// OverlayImage places an image on top of a video at a fixed position.
	OverlayImage(ctx context.Context, req ImageOverlayRequest) error

	// CreateSolidColorImage writes a single frame of a solid color.
	CreateSolidColorImage(ctx context.Context, req SolidColorRequest) error

	// ApplyLUT color grades a video with one of the bundled 3D LUTs.
	ApplyLUT(ctx context.Context, req LUTRequest) error

	// AddCenteredText draws text centered on the video over a translucent box.
	AddCenteredText(ctx context.Context, req TextOverlayRequest) error

	// Probe reads width, height and duration of the first video stream.
	Probe(ctx context.Context, path string) (*VideoMetadata, error)
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)
