package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	settings Settings
	runner   CommandRunner
	logger   *slog.Logger
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithRunner replaces the process runner. Tests use it to avoid spawning ffmpeg.
func WithRunner(r CommandRunner) Option {
	return func(p *FFmpegProcessor) {
		p.runner = r
	}
}

// WithLogger sets the logger used for invocation traces.
func WithLogger(l *slog.Logger) Option {
	return func(p *FFmpegProcessor) {
		p.logger = l
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Zero fields in settings take their value from DefaultSettings.
func NewFFmpegProcessor(settings Settings, opts ...Option) *FFmpegProcessor {
	p := &FFmpegProcessor{
		settings: settings.withFallbacks(),
		runner:   ExecRunner{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the effective settings after defaults were applied.
func (p *FFmpegProcessor) Settings() Settings {
	return p.settings
}

// Concatenate joins two videos back to back, re-encoding video and audio.
func (p *FFmpegProcessor) Concatenate(ctx context.Context, req ConcatenateRequest) error {
	if err := requireFile("first input video", req.First); err != nil {
		return err
	}
	if err := requireFile("second input video", req.Second); err != nil {
		return err
	}

	return p.runFFmpeg(ctx, "concatenate", p.settings.concatArgs(req))
}

// Split writes [0, At) of the input to Before and [At, end) to After.
// Both parts are stream copied, so cut points snap to keyframes.
func (p *FFmpegProcessor) Split(ctx context.Context, req SplitRequest) error {
	if math.IsNaN(req.At) || math.IsInf(req.At, 0) || req.At < 0 {
		return fmt.Errorf("%w: split time %v", ErrInvalidDuration, req.At)
	}
	if err := requireFile("input file", req.Input); err != nil {
		return err
	}

	before, after := p.settings.splitArgs(req)

	if err := p.runFFmpeg(ctx, "split", before); err != nil {
		return fmt.Errorf("%w: %w", ErrSplitFirstPart, err)
	}
	if err := p.runFFmpeg(ctx, "split", after); err != nil {
		return fmt.Errorf("%w: %w", ErrSplitSecondPart, err)
	}

	return nil
}

// MergeWithTransition joins two videos with an xfade transition.
// Without an explicit offset the transition starts one second before the end
// of the first video, or after Settings.FallbackOffset seconds if its duration
// cannot be read.
func (p *FFmpegProcessor) MergeWithTransition(ctx context.Context, req TransitionRequest) error {
	if err := requireFile("first input file", req.First); err != nil {
		return err
	}
	if err := requireFile("second input file", req.Second); err != nil {
		return err
	}
	if math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) || req.Duration < 0 {
		return fmt.Errorf("%w: transition duration %v", ErrInvalidDuration, req.Duration)
	}

	keyword, err := req.Transition.Keyword(p.settings.Transitions)
	if err != nil {
		return err
	}

	offset := p.transitionOffset(ctx, req)

	return p.runFFmpeg(ctx, "merge with transition", p.settings.transitionArgs(req, keyword, offset))
}

// transitionOffset resolves when the transition starts.
func (p *FFmpegProcessor) transitionOffset(ctx context.Context, req TransitionRequest) float64 {
	if req.Offset != nil {
		return *req.Offset
	}

	duration, err := p.ProbeDuration(ctx, req.First)
	if err != nil {
		p.logger.Warn("could not read duration, using fallback transition offset",
			slog.String("path", req.First),
			slog.Float64("offset", p.settings.FallbackOffset),
			slog.String("error", err.Error()),
		)
		return p.settings.FallbackOffset
	}

	return math.Max(duration-1, 0)
}

// OverlayImage composites an image over a video at (X, Y). Audio is copied.
func (p *FFmpegProcessor) OverlayImage(ctx context.Context, req ImageOverlayRequest) error {
	if err := requireFile("input video", req.Input); err != nil {
		return err
	}
	if err := requireFile("image", req.Image); err != nil {
		return err
	}
	if (req.Width != nil && *req.Width <= 0) || (req.Height != nil && *req.Height <= 0) {
		return fmt.Errorf("%w: overlay width=%s, height=%s", ErrInvalidDimensions, optInt(req.Width), optInt(req.Height))
	}

	return p.runFFmpeg(ctx, "overlay image", p.settings.overlayArgs(req))
}

// CreateSolidColorImage renders a single frame of a solid color.
func (p *FFmpegProcessor) CreateSolidColorImage(ctx context.Context, req SolidColorRequest) error {
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, req.Width, req.Height)
	}

	return p.runFFmpeg(ctx, "create solid color image", p.settings.solidColorArgs(req))
}

// ApplyLUT runs the lut3d filter with the file the LUT resolves to. Audio is copied.
func (p *FFmpegProcessor) ApplyLUT(ctx context.Context, req LUTRequest) error {
	if err := requireFile("input video", req.Input); err != nil {
		return err
	}

	lutPath, err := req.LUT.Path(p.settings.LUTDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(lutPath); err != nil {
		return fmt.Errorf("%w: %s", ErrLUTNotFound, lutPath)
	}

	return p.runFFmpeg(ctx, "apply LUT", p.settings.lutArgs(req, lutPath))
}

// AddCenteredText draws white text centered on the video over a half
// transparent black box. Audio is copied.
func (p *FFmpegProcessor) AddCenteredText(ctx context.Context, req TextOverlayRequest) error {
	if err := requireFile("input file", req.Input); err != nil {
		return err
	}

	return p.runFFmpeg(ctx, "add centered text", p.settings.textArgs(req))
}

// ProbeDuration returns the container duration of a media file in seconds.
func (p *FFmpegProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := p.runFFprobe(ctx, p.settings.durationArgs(path))
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(string(res.Stdout))
	duration, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %w", ErrMalformedProbeOutput, s, err)
	}

	return duration, nil
}

// runFFmpeg executes ffmpeg and turns a non-zero exit into an *FFmpegError.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, op string, args []string) error {
	p.logger.Debug("running ffmpeg",
		slog.String("op", op),
		slog.String("args", strings.Join(args, " ")),
	)

	res, err := p.runner.Run(ctx, p.settings.FFmpegPath, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !res.Success() {
		p.logger.Warn("ffmpeg failed",
			slog.String("op", op),
			slog.Int("exit_code", res.ExitCode),
		)
		return &FFmpegError{
			Op:       op,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   string(res.Stderr),
		}
	}

	return nil
}

// runFFprobe executes ffprobe and returns its output, or ErrProbeFailed.
func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args []string) (CommandResult, error) {
	p.logger.Debug("running ffprobe", slog.String("args", strings.Join(args, " ")))

	res, err := p.runner.Run(ctx, p.settings.FFprobePath, args...)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	if !res.Success() {
		return res, fmt.Errorf("%w: exit status %d, stderr: %s",
			ErrProbeFailed, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	return res, nil
}

// requireFile returns a *NotFoundError unless path exists.
func requireFile(what, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) || path == "" {
			return &NotFoundError{What: what, Path: path}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

func optInt(v *int) string {
	if v == nil {
		return "auto"
	}
	return strconv.Itoa(*v)
}
