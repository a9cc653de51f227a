// Package check resolves the ffmpeg and ffprobe executables before a run and
// provides the system diagnostics printed by --check.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/stitch/internal/config"
)

// Sentinel errors returned by ResolveTools when a required tool is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found")
	ErrFfprobeNotFound = errors.New("ffprobe not found")
)

// Tools holds the resolved absolute paths of the external binaries. It is
// built once at startup and passed to the engine by value.
type Tools struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// ResolveTools locates ffmpeg and ffprobe. An explicit path from the
// configuration must name an existing regular file; otherwise PATH is
// searched. The returned error wraps ErrFfmpegNotFound or ErrFfprobeNotFound.
func ResolveTools(cfg *config.Config) (Tools, error) {
	ffmpeg, err := resolve("ffmpeg", cfg.FFmpegPath)
	if err != nil {
		return Tools{}, fmt.Errorf("%w: %v", ErrFfmpegNotFound, err)
	}
	ffprobe, err := resolve("ffprobe", cfg.FFprobePath)
	if err != nil {
		return Tools{}, fmt.Errorf("%w: %v", ErrFfprobeNotFound, err)
	}
	return Tools{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func resolve(name, explicit string) (string, error) {
	if explicit == "" {
		return exec.LookPath(name)
	}
	info, err := os.Stat(explicit)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", explicit)
	}
	return explicit, nil
}

// RunCheck runs the interactive --check flow: prints the resolved tool
// paths and versions, and tests the concat demuxer, libx264 and AAC.
// Every check runs even after a failure; the result reports whether all
// of them passed.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := true
	tools := Tools{}
	var err error
	if tools.FFmpeg, err = resolve("ffmpeg", cfg.FFmpegPath); err != nil {
		log.Error("ffmpeg not found: %v", err)
		ok = false
	} else {
		logVersion(log, "ffmpeg", tools.FFmpeg)
	}
	if tools.FFprobe, err = resolve("ffprobe", cfg.FFprobePath); err != nil {
		log.Error("ffprobe not found: %v", err)
		ok = false
	} else {
		logVersion(log, "ffprobe", tools.FFprobe)
	}
	if tools.FFmpeg == "" {
		return false
	}

	ok = checkDemuxer(log, tools.FFmpeg) && ok
	ok = checkEncoder(log, tools.FFmpeg, cfg.VideoCodec, "-f", "lavfi", "-i", "color=black:s=256x256:d=0.1", "-c:v", cfg.VideoCodec) && ok
	ok = checkEncoder(log, tools.FFmpeg, cfg.AudioCodec, "-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1", "-c:a", cfg.AudioCodec) && ok
	return ok
}

// logVersion logs the first line of "<bin> -version".
func logVersion(log Logger, name, bin string) {
	out, err := exec.Command(bin, "-version").Output()
	if err != nil {
		log.Warn("%s found at %s but -version failed: %v", name, bin, err)
		return
	}
	log.Success("%s: %s", name, firstLine(string(out)))
}

// checkDemuxer verifies the concat demuxer is compiled in.
func checkDemuxer(log Logger, ffmpeg string) bool {
	out, err := exec.Command(ffmpeg, "-hide_banner", "-demuxers").Output()
	if err != nil {
		log.Warn("Could not list demuxers: %v", err)
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "concat" {
			log.Success("concat demuxer available")
			return true
		}
	}
	log.Error("concat demuxer not available")
	return false
}

// checkEncoder runs a minimal encode to a null muxer.
func checkEncoder(log Logger, ffmpeg, label string, args ...string) bool {
	log.Info("Testing %s...", label)
	argv := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, args...)
	argv = append(argv, "-f", "null", "-")
	if runSilent(ffmpeg, argv...) {
		log.Success("%s works", label)
		return true
	}
	log.Error("%s test encode failed", label)
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx > 0 {
		return s[:idx]
	}
	return s
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run() == nil
}
