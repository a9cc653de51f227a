package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/planner"
)

// Settings holds the encode parameters shared by every job of a run.
type Settings struct {
	LogLevel     string
	FrameRate    int
	PixFmt       string
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
}

// SettingsFromConfig resolves Settings from the validated configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	level := "error"
	if cfg.Verbose {
		level = "info"
	}
	return Settings{
		LogLevel:     level,
		FrameRate:    cfg.FrameRate,
		PixFmt:       cfg.PixFmt,
		VideoCodec:   cfg.VideoCodec,
		Preset:       cfg.Preset,
		CRF:          cfg.CRF,
		AudioCodec:   cfg.AudioCodec,
		AudioBitrate: cfg.AudioBitrate,
	}
}

// Build constructs the ffmpeg argument slice (without the binary) for plan.
// mode must already be resolved (ModeConcat or ModeFilter). manifest is the
// concat list and is ignored in filter mode; audio maps source paths to
// audio presence and is ignored in concat mode.
func Build(s Settings, plan planner.Plan, mode planner.Mode, manifest string, audio map[string]bool) []string {
	args := make([]string, 0, 32+2*len(plan.Sources))

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin", "-y", "-loglevel", s.LogLevel, "-nostats")

	switch mode {
	case planner.ModeFilter:
		args = appendFilterGraph(args, s, plan, AllHaveAudio(plan, audio))
	default:
		args = append(args,
			"-f", "concat",
			"-safe", "0",
			"-i", manifest,
			"-c", "copy",
		)
	}

	// --- Progress and output ---
	args = append(args, "-progress", "pipe:1", plan.Target.Path)
	return args
}

// appendFilterGraph adds one input per source, the generated filter graph,
// the stream maps and the codec arguments.
func appendFilterGraph(args []string, s Settings, plan planner.Plan, withAudio bool) []string {
	for _, src := range plan.Sources {
		args = append(args, "-i", src.Path)
	}
	args = append(args,
		"-vsync", "cfr",
		"-r", strconv.Itoa(s.FrameRate),
		"-filter_complex", FilterGraph(s, len(plan.Sources), withAudio),
	)

	args = append(args, "-map", "[outv]")
	if withAudio {
		args = append(args,
			"-map", "[outa]",
			"-c:a", s.AudioCodec,
			"-b:a", s.AudioBitrate,
		)
	}

	return append(args,
		"-c:v", s.VideoCodec,
		"-preset", s.Preset,
		"-crf", strconv.Itoa(s.CRF),
	)
}

// FilterGraph returns the -filter_complex expression for n inputs. Every
// video input is normalized to the configured frame rate and pixel format;
// audio inputs are included only when withAudio is set.
func FilterGraph(s Settings, n int, withAudio bool) string {
	var b strings.Builder
	var concatIn strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "[%d:v]fps=%d,format=%s[v%d];", i, s.FrameRate, s.PixFmt, i)
		fmt.Fprintf(&concatIn, "[v%d]", i)
		if withAudio {
			fmt.Fprintf(&b, "[%d:a]anull[a%d];", i, i)
			fmt.Fprintf(&concatIn, "[a%d]", i)
		}
	}
	b.WriteString(concatIn.String())
	if withAudio {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", n)
	} else {
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[outv]", n)
	}
	return b.String()
}

// AllHaveAudio reports whether every source of plan has an audio stream.
// Audio is never partially mixed: one silent source makes the whole target
// video-only.
func AllHaveAudio(plan planner.Plan, audio map[string]bool) bool {
	if len(plan.Sources) == 0 {
		return false
	}
	for _, src := range plan.Sources {
		if !audio[src.Path] {
			return false
		}
	}
	return true
}

// CountWithAudio returns how many of plan's sources have an audio stream.
func CountWithAudio(plan planner.Plan, audio map[string]bool) int {
	n := 0
	for _, src := range plan.Sources {
		if audio[src.Path] {
			n++
		}
	}
	return n
}

// ModeLabel names the strategy in Info events.
func ModeLabel(mode planner.Mode) string {
	if mode == planner.ModeFilter {
		return "filter_complex"
	}
	return "concat"
}
