package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	Name string
	Args []string
}

// fakeRunner records invocations and answers them through respond.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(name string, args []string) (CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.respond == nil {
		return CommandResult{}, nil
	}
	return f.respond(name, args)
}

func (f *fakeRunner) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, r *fakeRunner, settings Settings) *FFmpegProcessor {
	t.Helper()
	return NewFFmpegProcessor(settings, WithRunner(r), WithLogger(discardLogger()))
}

// touch creates an empty file in dir and returns its path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	return path
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a small video with solid color and silent audio.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x48:r=25:d=%.1f", color, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-g", "25",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// getToken reads one token the way libavutil's av_get_token does: leading
// whitespace is skipped, a backslash makes the next byte literal, single
// quotes copy verbatim, and unescaped trailing whitespace is dropped.
func getToken(s, term string) (token, rest string) {
	s = strings.TrimLeft(s, " \n\t\r")
	var out []byte
	end := 0
	i := 0
	for i < len(s) && !strings.ContainsRune(term, rune(s[i])) {
		c := s[i]
		i++
		switch {
		case c == '\\' && i < len(s):
			out = append(out, s[i])
			i++
			end = len(out)
		case c == '\'':
			for i < len(s) && s[i] != '\'' {
				out = append(out, s[i])
				i++
			}
			if i < len(s) {
				i++
				end = len(out)
			}
		default:
			out = append(out, c)
		}
	}
	for len(out) > end && strings.ContainsRune(" \n\t\r", rune(out[len(out)-1])) {
		out = out[:len(out)-1]
	}
	return string(out), s[i:]
}

func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.IndexByte("-_/.", c) >= 0
}

// parseFilterOptions decodes a single-filter -vf value through the graph and
// option parsing levels. A value without a key is stored under "".
func parseFilterOptions(t *testing.T, vf, filter string) map[string]string {
	t.Helper()
	rest, ok := strings.CutPrefix(vf, filter+"=")
	require.True(t, ok, "filter %q not found in %q", filter, vf)

	args, tail := getToken(rest, "[],;")
	require.Empty(t, tail, "filtergraph did not consume the whole value")

	opts := make(map[string]string)
	for args != "" {
		k := 0
		for k < len(args) && isKeyChar(args[k]) {
			k++
		}
		key := ""
		if k < len(args) && args[k] == '=' {
			key, args = args[:k], args[k+1:]
		}
		var value string
		value, args = getToken(args, ":")
		_, dup := opts[key]
		require.False(t, dup, "option %q set twice", key)
		opts[key] = value
		args = strings.TrimPrefix(args, ":")
	}
	return opts
}

// unescapeExpansion undoes drawtext's backslash escaping of its text.
func unescapeExpansion(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
