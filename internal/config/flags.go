package config

// This file implements CLI flag definitions and the viper binding that merges
// flags, STITCH_* environment variables and an optional YAML config file.
// Precedence: changed flag > environment > config file > DefaultConfig.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable key (STITCH_JOBS, ...).
const EnvPrefix = "STITCH"

// flagKeys maps each long flag name to its viper/config-file key.
var flagKeys = map[string]string{
	"target-dir":    "target_dir",
	"sources-dir":   "sources_dir",
	"ffmpeg-path":   "ffmpeg_path",
	"ffprobe-path":  "ffprobe_path",
	"jobs":          "jobs",
	"event-buffer":  "event_buffer",
	"mode":          "mode",
	"fps":           "fps",
	"preset":        "preset",
	"crf":           "crf",
	"audio-bitrate": "audio_bitrate",
	"dry-run":       "dry_run",
	"keep-temp":     "keep_temp",
	"check":         "check",
	"verbose":       "verbose",
	"color":         "color",
	"log":           "log",
}

// DefineFlags registers every configuration flag on fs, using cfg for the
// displayed defaults. Values are read back through viper by [Load].
func DefineFlags(fs *pflag.FlagSet, cfg *Config) {
	defineDirectoryFlags(fs, cfg)
	defineBinaryFlags(fs, cfg)
	defineEncodingFlags(fs, cfg)
	defineBehaviorFlags(fs)
	defineDisplayFlags(fs, cfg)
}

// defineDirectoryFlags registers -o/--target-dir and -i/--sources-dir.
func defineDirectoryFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP("target-dir", "o", cfg.TargetDir, "Output directory for stitched files")
	fs.StringP("sources-dir", "i", cfg.SourcesDir, "Input directory containing source clips")
}

// defineBinaryFlags registers explicit tool paths (also STITCH_BIN_FFMPEG / STITCH_BIN_FFPROBE).
func defineBinaryFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("ffmpeg-path", cfg.FFmpegPath, "Path to the ffmpeg binary (default: search PATH)")
	fs.String("ffprobe-path", cfg.FFprobePath, "Path to the ffprobe binary (default: search PATH)")
}

// defineEncodingFlags registers -j/--jobs, -m/--mode and the filter-graph encode settings.
func defineEncodingFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntP("jobs", "j", cfg.MaxProcs, "Maximum concurrent ffmpeg/ffprobe processes")
	fs.Int("event-buffer", cfg.EventBuffer, "Progress event channel capacity")
	fs.StringP("mode", "m", string(cfg.Mode), "Default encode mode for targets without a flag: concat | filter")
	fs.Int("fps", cfg.FrameRate, "Output frame rate in filter mode")
	fs.String("preset", cfg.Preset, "x264 preset in filter mode")
	fs.Int("crf", cfg.CRF, "x264 CRF in filter mode")
	fs.String("audio-bitrate", cfg.AudioBitrate, "AAC bitrate in filter mode (e.g. 128k)")
}

// defineBehaviorFlags registers dry-run, keep-temp and check.
func defineBehaviorFlags(fs *pflag.FlagSet) {
	fs.BoolP("dry-run", "d", false, "Compile and print the plans; do not run ffmpeg")
	fs.Bool("keep-temp", false, "Keep the per-run temporary directory (concat manifests)")
	fs.BoolP("check", "c", false, "Run tool diagnostics and exit")
}

// defineDisplayFlags registers verbose, color and log.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolP("verbose", "v", false, "Verbose log output instead of the live progress view")
	fs.String("color", string(cfg.ColorMode), "Color output: auto | always | never")
	fs.Bool("no-color", false, "Same as --color=never")
	fs.StringP("log", "l", "", "Append JSON logs to file")
}

// Bind wires fs and the environment into v and seeds v with cfg's values as
// defaults. Call once, before [Load].
func Bind(v *viper.Viper, fs *pflag.FlagSet, cfg *Config) error {
	setDefaults(v, cfg)

	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// Historic names for the binary overrides take precedence over the
	// generic STITCH_FFMPEG_PATH form.
	if err := v.BindEnv("ffmpeg_path", EnvPrefix+"_BIN_FFMPEG", EnvPrefix+"_FFMPEG_PATH"); err != nil {
		return err
	}
	return v.BindEnv("ffprobe_path", EnvPrefix+"_BIN_FFPROBE", EnvPrefix+"_FFPROBE_PATH")
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("target_dir", cfg.TargetDir)
	v.SetDefault("sources_dir", cfg.SourcesDir)
	v.SetDefault("ffmpeg_path", cfg.FFmpegPath)
	v.SetDefault("ffprobe_path", cfg.FFprobePath)
	v.SetDefault("jobs", cfg.MaxProcs)
	v.SetDefault("event_buffer", cfg.EventBuffer)
	v.SetDefault("mode", string(cfg.Mode))
	v.SetDefault("fps", cfg.FrameRate)
	v.SetDefault("pix_fmt", cfg.PixFmt)
	v.SetDefault("video_codec", cfg.VideoCodec)
	v.SetDefault("preset", cfg.Preset)
	v.SetDefault("crf", cfg.CRF)
	v.SetDefault("audio_codec", cfg.AudioCodec)
	v.SetDefault("audio_bitrate", cfg.AudioBitrate)
	v.SetDefault("color", string(cfg.ColorMode))
}

// ReadConfigFile loads path into v. With an empty path the default locations
// ($XDG_CONFIG_HOME/stitch/config.yaml, ./.stitch/config.yaml) are tried and a
// missing file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigType("yaml")
	v.SetConfigName("config")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "stitch"))
	}
	v.AddConfigPath(".stitch")

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load resolves the merged configuration from v into cfg, applies --no-color
// and the positional SPEC_FILE argument, and normalizes directory arguments.
func Load(v *viper.Viper, fs *pflag.FlagSet, args []string, cfg *Config) error {
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}

	if noColor, err := fs.GetBool("no-color"); err == nil && noColor {
		cfg.ColorMode = ColorNever
	}

	cfg.Mode = EncodeMode(strings.ToLower(string(cfg.Mode)))
	cfg.ColorMode = ColorMode(strings.ToLower(string(cfg.ColorMode)))
	cfg.TargetDir = NormalizeDirArg(cfg.TargetDir)
	cfg.SourcesDir = NormalizeDirArg(cfg.SourcesDir)

	switch {
	case len(args) == 1:
		cfg.SpecPath = args[0]
	case len(args) > 1:
		return fmt.Errorf("need exactly one SPEC_FILE argument (got %d)", len(args))
	}
	return nil
}
