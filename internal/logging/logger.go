// Package logging provides the leveled, optionally colored console logger
// and the optional JSON log file sink.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/term"
)

// levelSuccess sits between INFO and WARN in the JSON file.
const levelSuccess = slog.Level(2)

// output is shared by a Logger and every logger derived from it.
type output struct {
	mu      sync.Mutex
	stdout  io.Writer
	stderr  io.Writer
	console bool
	verbose bool
	file    *os.File
	json    *slog.Logger
}

// Logger provides leveled, optionally colored logging with an optional JSON
// file sink. It is safe for concurrent use.
type Logger struct {
	out    *output
	prefix string // console prefix, e.g. "[intro.mp4] "
	attrs  []any  // JSON attributes
}

// NewLogger initializes colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	out := &output{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		console: true,
		verbose: cfg.Verbose,
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		out.file = f
		out.json = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey && a.Value.Any() == levelSuccess {
					return slog.String(slog.LevelKey, "SUCCESS")
				}
				return a
			},
		}))
	}
	return &Logger{out: out}, nil
}

// Nop returns a logger that writes nowhere. Intended for tests and for
// library callers that do not want console output.
func Nop() *Logger {
	return &Logger{out: &output{stdout: io.Discard, stderr: io.Discard}}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file != nil {
		err := l.out.file.Close()
		l.out.file = nil
		l.out.json = nil
		return err
	}
	return nil
}

// SetConsole enables or disables console output. The live progress view
// turns the console off while it owns the terminal; the file sink is
// unaffected.
func (l *Logger) SetConsole(on bool) {
	l.out.mu.Lock()
	l.out.console = on
	l.out.mu.Unlock()
}

// WithJob returns a logger that prefixes console lines with the target name
// and tags JSON records with the job id and target.
func (l *Logger) WithJob(id, target string) *Logger {
	attrs := make([]any, 0, len(l.attrs)+4)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, "job_id", id, "target", target)
	return &Logger{out: l.out, prefix: "[" + target + "] ", attrs: attrs}
}

// With returns a logger carrying extra JSON attributes (alternating keys and values).
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{out: l.out, prefix: l.prefix, attrs: attrs}
}

func (l *Logger) line(level slog.Level, label, color, text string, console bool) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	o := l.out
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.console && console {
		w := o.stdout
		if level >= slog.LevelError {
			w = o.stderr
		}
		if color != "" {
			_, _ = io.WriteString(w, ts+" "+color+"["+label+"]"+term.NC+" "+l.prefix+text+"\n")
		} else {
			_, _ = io.WriteString(w, ts+" ["+label+"] "+l.prefix+text+"\n")
		}
	}
	if o.json != nil {
		o.json.Log(context.Background(), level, text, l.attrs...)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line(slog.LevelInfo, "INFO", term.Blue, fmt.Sprintf(format, args...), true)
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line(levelSuccess, "SUCCESS", term.Green, fmt.Sprintf(format, args...), true)
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line(slog.LevelWarn, "WARN", term.Yellow, fmt.Sprintf(format, args...), true)
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line(slog.LevelError, "ERROR", term.Red, fmt.Sprintf(format, args...), true)
}

// Debug logs at DEBUG level (cyan). The console only shows it in verbose
// mode; the file sink always records it.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.line(slog.LevelDebug, "DEBUG", term.Cyan, fmt.Sprintf(format, args...), l.out.verbose)
}
