// Package config holds runtime configuration: defaults, CLI flag and
// environment binding, and validation.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// --- Enum types for validated string fields ---

// EncodeMode selects the run-wide default encode strategy. Plans that carry
// their own flag line override it.
type EncodeMode string

const (
	ModeConcat EncodeMode = "concat" // Concat demuxer, stream copy (default).
	ModeFilter EncodeMode = "filter" // Filter graph, re-encode.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then by [Load] (flags, STITCH_* environment, optional config file) before
// being passed (by pointer) to packages that need it.
type Config struct {
	// Paths. SpecPath is the positional argument.
	SpecPath   string `mapstructure:"-"`
	TargetDir  string `mapstructure:"target_dir"`  // Default: current directory.
	SourcesDir string `mapstructure:"sources_dir"` // Default: current directory.

	// Tool overrides. Empty means "search PATH".
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`

	// Engine.
	MaxProcs    int        `mapstructure:"jobs"`         // Limiter capacity. Default: NumCPU.
	EventBuffer int        `mapstructure:"event_buffer"` // Progress channel capacity. Default: 100.
	Mode        EncodeMode `mapstructure:"mode"`         // Default: "concat".

	// Filter-graph encode settings.
	FrameRate    int    `mapstructure:"fps"`           // Default: 30.
	PixFmt       string `mapstructure:"pix_fmt"`       // Fixed: "yuv420p".
	VideoCodec   string `mapstructure:"video_codec"`   // Fixed: "libx264".
	Preset       string `mapstructure:"preset"`        // Default: "medium".
	CRF          int    `mapstructure:"crf"`           // Default: 23.
	AudioCodec   string `mapstructure:"audio_codec"`   // Fixed: "aac".
	AudioBitrate string `mapstructure:"audio_bitrate"` // Default: "128k".

	// Behavior flags.
	DryRun    bool `mapstructure:"dry_run"`
	KeepTemp  bool `mapstructure:"keep_temp"`
	CheckOnly bool `mapstructure:"check"`

	// Display and logging.
	Verbose   bool      `mapstructure:"verbose"`
	ColorMode ColorMode `mapstructure:"color"` // Default: "auto".
	LogFile   string    `mapstructure:"log"`   // Optional JSON log file path.
}

// DefaultConfig returns a Config with every default applied. Used as the
// base before [Load] applies overrides.
func DefaultConfig() Config {
	return Config{
		TargetDir:    ".",
		SourcesDir:   ".",
		MaxProcs:     runtime.NumCPU(),
		EventBuffer:  100,
		Mode:         ModeConcat,
		FrameRate:    30,
		PixFmt:       "yuv420p",
		VideoCodec:   "libx264",
		Preset:       "medium",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		ColorMode:    ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. When not in CheckOnly mode
// it also requires the spec path.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeConcat, ModeFilter:
		// valid
	default:
		return fmt.Errorf("invalid mode %q (use 'concat' or 'filter')", c.Mode)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.MaxProcs < 1 {
		return fmt.Errorf("jobs must be at least 1 (got %d)", c.MaxProcs)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("event buffer must be at least 1 (got %d)", c.EventBuffer)
	}
	if c.FrameRate < 1 {
		return fmt.Errorf("fps must be positive (got %d)", c.FrameRate)
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51 (got %d)", c.CRF)
	}

	normalizedBitrate, err := normalizeAudioBitrate(c.AudioBitrate)
	if err != nil {
		return err
	}
	c.AudioBitrate = normalizedBitrate

	if c.CheckOnly {
		return nil
	}
	if c.SpecPath == "" {
		return errors.New("need exactly one SPEC_FILE argument")
	}
	return nil
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "128", "128k", "128K", "128kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 128k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}
