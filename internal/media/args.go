package media

import (
	"fmt"
	"strconv"
	"strings"
)

// concatFilter joins the video and audio of two inputs in sequence.
const concatFilter = "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1"

// drawtextStyle is everything in the drawtext filter after the font size.
const drawtextStyle = "fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2:box=1:boxcolor=black@0.5:boxborderw=5"

func (s Settings) concatArgs(req ConcatenateRequest) []string {
	return []string{
		"-i", req.First,
		"-i", req.Second,
		"-filter_complex", concatFilter,
		"-c:v", s.VideoCodec,
		"-c:a", s.AudioCodec,
		"-y",
		req.Output,
	}
}

// splitArgs returns the two invocations of a split: [0, At) and [At, end),
// both stream copied.
func (s Settings) splitArgs(req SplitRequest) (before, after []string) {
	at := formatSeconds(req.At)
	before = []string{
		"-i", req.Input,
		"-t", at,
		"-c", "copy",
		"-y",
		req.Before,
	}
	after = []string{
		"-ss", at,
		"-i", req.Input,
		"-c", "copy",
		"-y",
		req.After,
	}
	return before, after
}

func (s Settings) transitionArgs(req TransitionRequest, keyword string, offset float64) []string {
	d := formatSeconds(req.Duration)
	filter := fmt.Sprintf("[0:v] [1:v] xfade=transition=%s:duration=%s:offset=%s [v];[0:a][1:a] acrossfade=d=%s [a]",
		keyword, d, formatSeconds(offset), d)

	return []string{
		"-i", req.First,
		"-i", req.Second,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", s.VideoCodec,
		"-c:a", s.AudioCodec,
		"-b:a", s.AudioBitrate,
		"-y",
		req.Output,
	}
}

// overlayScale picks the scale filter for an overlay image.
// With one dimension the other follows the display aspect ratio of the image,
// taking its sample aspect ratio into account.
func (s Settings) overlayScale(width, height *int) string {
	switch {
	case width != nil && height != nil:
		return fmt.Sprintf("scale=%d:%d", *width, *height)
	case width != nil:
		return fmt.Sprintf("scale=%d:ow/a/sar", *width)
	case height != nil:
		return fmt.Sprintf("scale=oh*a*sar:%d", *height)
	default:
		return fmt.Sprintf("scale=%d:%d", s.OverlaySize, s.OverlaySize)
	}
}

func (s Settings) overlayArgs(req ImageOverlayRequest) []string {
	logo := "format=rgba," + s.overlayScale(req.Width, req.Height)
	if req.Opacity > 0 && req.Opacity < 1 {
		logo += ",colorchannelmixer=aa=" + strconv.FormatFloat(req.Opacity, 'f', -1, 64)
	}
	filter := fmt.Sprintf("[1:v]%s,setsar=1[logo];[0:v][logo]overlay=x=%d:y=%d:format=auto,format=yuv420p,setsar=1",
		logo, req.X, req.Y)

	return []string{
		"-i", req.Input,
		"-i", req.Image,
		"-filter_complex", filter,
		"-c:v", s.VideoCodec,
		"-c:a", "copy",
		"-y",
		req.Output,
	}
}

func (s Settings) solidColorArgs(req SolidColorRequest) []string {
	return []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d", req.Color, req.Width, req.Height),
		"-frames:v", "1",
		"-update", "1",
		"-y",
		req.Output,
	}
}

func (s Settings) lutArgs(req LUTRequest, lutPath string) []string {
	return []string{
		"-i", req.Input,
		"-vf", "lut3d=" + escapeFilterValue(lutPath),
		"-c:a", "copy",
		"-y",
		req.Output,
	}
}

func (s Settings) textArgs(req TextOverlayRequest) []string {
	filter := fmt.Sprintf("drawtext=fontfile=%s:text=%s:"+drawtextStyle,
		escapeFilterValue(req.FontFile), escapeDrawtext(req.Text), req.FontSize)

	return []string{
		"-i", req.Input,
		"-vf", filter,
		"-codec:a", "copy",
		"-y",
		req.Output,
	}
}

func (s Settings) probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	}
}

func (s Settings) durationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// formatSeconds renders seconds with the shortest exact representation: 5 -> "5", 4.5 -> "4.5".
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}

// A filter option value is unescaped twice: first by the filtergraph parser,
// which splits on "[],;", then by the filter's option parser, which splits on
// ":". Escaping is applied in the reverse order.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)

	// drawtext expands %{...} sequences in its text; a backslash makes the
	// next character literal.
	expansionEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`)
)

// escapeFilterValue makes v survive both parsing levels of a -vf argument.
func escapeFilterValue(v string) string {
	return graphEscaper.Replace(optionEscaper.Replace(v))
}

// escapeDrawtext escapes text for the drawtext text option, including its
// own expansion pass.
func escapeDrawtext(text string) string {
	return escapeFilterValue(expansionEscaper.Replace(text))
}
