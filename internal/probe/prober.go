package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/backmassage/stitch/internal/process"
)

// ErrNoDuration means ffprobe printed no duration line.
var ErrNoDuration = errors.New("ffprobe reported no duration")

// InvalidDurationError means the duration line could not be parsed as a
// non-negative number.
type InvalidDurationError struct {
	Path  string
	Value string
	Err   error
}

func (e *InvalidDurationError) Error() string {
	msg := fmt.Sprintf("invalid duration %q for %s", e.Value, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidDurationError) Unwrap() error { return e.Err }

// ExitError reports a duration probe that exited non-zero.
type ExitError struct {
	Path string
	Exit *process.Exit
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffprobe %s: %s", e.Path, e.Exit)
	if tail := e.Exit.StderrTail(3); tail != "" {
		msg += ": " + strings.ReplaceAll(tail, "\n", "; ")
	}
	return msg
}

// Prober runs ffprobe through a shared Runner.
type Prober struct {
	runner  *process.Runner
	ffprobe string
}

// NewProber returns a Prober invoking the ffprobe binary at path.
func NewProber(runner *process.Runner, ffprobe string) *Prober {
	return &Prober{runner: runner, ffprobe: ffprobe}
}

// DurationArgs returns the ffprobe arguments printing only the container
// duration in seconds.
func DurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// AudioArgs returns the ffprobe arguments printing one line per audio stream.
func AudioArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// Duration returns the duration of the media file at path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	exit, err := p.runner.Run(ctx, process.Command{Path: p.ffprobe, Args: DurationArgs(path)}, process.Sinks{})
	if err != nil {
		return 0, err
	}
	if !exit.Success() {
		return 0, &ExitError{Path: path, Exit: exit}
	}
	return ParseDuration(path, exit.Stdout)
}

// HasAudio reports whether the media file at path has at least one audio
// stream. A non-zero ffprobe exit counts as "no audio"; only failures to run
// ffprobe at all are returned as errors.
func (p *Prober) HasAudio(ctx context.Context, path string) (bool, error) {
	exit, err := p.runner.Run(ctx, process.Command{Path: p.ffprobe, Args: AudioArgs(path)}, process.Sinks{})
	if err != nil {
		return false, err
	}
	return ParseHasAudio(exit), nil
}

// ParseDuration extracts the duration from the first stdout line of the
// duration probe. Exported for testing without a real ffprobe binary.
func ParseDuration(path string, stdout []string) (float64, error) {
	if len(stdout) == 0 || strings.TrimSpace(stdout[0]) == "" {
		return 0, fmt.Errorf("%s: %w", path, ErrNoDuration)
	}
	raw := strings.TrimSpace(stdout[0])
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &InvalidDurationError{Path: path, Value: raw, Err: err}
	}
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, &InvalidDurationError{Path: path, Value: raw}
	}
	return d, nil
}

// ParseHasAudio reports audio presence from an audio probe's exit summary:
// a successful exit whose first stdout line is non-empty.
func ParseHasAudio(exit *process.Exit) bool {
	return exit.Success() && len(exit.Stdout) > 0 && strings.TrimSpace(exit.Stdout[0]) != ""
}
