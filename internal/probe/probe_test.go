package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/stitch/internal/process"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		stdout  []string
		want    float64
		wantErr error
		invalid bool
	}{
		{"plain", []string{"12.500000"}, 12.5, nil, false},
		{"trailing space", []string{" 3.25 "}, 3.25, nil, false},
		{"extra lines ignored", []string{"1.0", "garbage"}, 1.0, nil, false},
		{"no output", nil, 0, ErrNoDuration, false},
		{"empty first line", []string{""}, 0, ErrNoDuration, false},
		{"N/A", []string{"N/A"}, 0, nil, true},
		{"negative", []string{"-1"}, 0, nil, true},
		{"NaN", []string{"NaN"}, 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration("clip.mp4", tt.stdout)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				var ide *InvalidDurationError
				require.ErrorAs(t, err, &ide)
				assert.Equal(t, "clip.mp4", ide.Path)
			default:
				require.NoError(t, err)
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseHasAudio(t *testing.T) {
	tests := []struct {
		name string
		exit *process.Exit
		want bool
	}{
		{"one audio stream", &process.Exit{Stdout: []string{"audio"}}, true},
		{"two audio streams", &process.Exit{Stdout: []string{"audio", "audio"}}, true},
		{"no streams", &process.Exit{}, false},
		{"blank line", &process.Exit{Stdout: []string{"  "}}, false},
		{"failed exit", &process.Exit{Stdout: []string{"audio"}, Code: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHasAudio(tt.exit))
		})
	}
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", "/m/a.mp4",
	}, DurationArgs("/m/a.mp4"))
	assert.Equal(t, []string{
		"-v", "error", "-select_streams", "a", "-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1", "/m/a.mp4",
	}, AudioArgs("/m/a.mp4"))
}

// fakeFFprobe answers both probes from "duration=" and "audio=1" lines in
// the probed file, mimicking ffprobe's output shape.
const fakeFFprobe = `#!/bin/sh
for last; do :; done
case "$*" in
*format=duration*)
	d=$(sed -n 's/^duration=//p' "$last")
	[ -n "$d" ] && echo "$d"
	;;
*stream=codec_type*)
	grep -q '^audio=1' "$last" && echo audio
	;;
esac
[ -f "$last" ] || { echo "$last: No such file or directory" >&2; exit 1; }
exit 0
`

func newFakeProber(t *testing.T) *Prober {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	bin := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(bin, []byte(fakeFFprobe), 0o755))
	return NewProber(process.NewRunner(process.NewLimiter(2), nil), bin)
}

func mediaFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestProber_WithFakeFFprobe(t *testing.T) {
	p := newFakeProber(t)
	ctx := context.Background()

	withAudio := mediaFile(t, "duration=12.5\naudio=1\n")
	d, err := p.Duration(ctx, withAudio)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, d, 1e-9)
	has, err := p.HasAudio(ctx, withAudio)
	require.NoError(t, err)
	assert.True(t, has)

	silent := mediaFile(t, "duration=4\n")
	has, err = p.HasAudio(ctx, silent)
	require.NoError(t, err)
	assert.False(t, has)

	noDuration := mediaFile(t, "audio=1\n")
	_, err = p.Duration(ctx, noDuration)
	assert.ErrorIs(t, err, ErrNoDuration)

	_, err = p.Duration(ctx, filepath.Join(t.TempDir(), "gone.mp4"))
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "No such file or directory")
}

func TestProber_MissingBinary(t *testing.T) {
	p := NewProber(process.NewRunner(process.NewLimiter(1), nil), filepath.Join(t.TempDir(), "ffprobe"))
	_, err := p.HasAudio(context.Background(), "x.mp4")
	var se *process.SpawnError
	assert.True(t, errors.As(err, &se), "got %v", err)
}
