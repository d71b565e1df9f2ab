package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// probeResult matches the part of `ffprobe -print_format json -show_streams` we read.
type probeResult struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType string          `json:"codec_type"`
	Width     *int            `json:"width"`
	Height    *int            `json:"height"`
	Duration  json.RawMessage `json:"duration"`
}

// Probe returns the dimensions and duration of the first video stream in path.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*VideoMetadata, error) {
	if err := requireFile("input video", path); err != nil {
		return nil, err
	}

	res, err := p.runFFprobe(ctx, p.settings.probeArgs(path))
	if err != nil {
		return nil, err
	}

	return parseProbeOutput(res.Stdout)
}

// parseProbeOutput extracts VideoMetadata from ffprobe JSON output.
// Width and height are required; a missing or unparsable duration reads as 0.
func parseProbeOutput(out []byte) (*VideoMetadata, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedProbeOutput)
	}

	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedProbeOutput, err)
	}
	if probe.Streams == nil {
		return nil, fmt.Errorf("%w: no streams array", ErrMalformedProbeOutput)
	}

	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width == nil || s.Height == nil || *s.Width <= 0 || *s.Height <= 0 {
			return nil, ErrMissingDimensions
		}
		return &VideoMetadata{
			Width:    *s.Width,
			Height:   *s.Height,
			Duration: parseStreamDuration(s.Duration),
		}, nil
	}

	return nil, ErrNoVideoStream
}

// parseStreamDuration accepts ffprobe's quoted decimal ("12.480000") or a bare number.
func parseStreamDuration(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return d
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}
