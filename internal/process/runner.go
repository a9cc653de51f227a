// Package process runs external tools under a shared concurrency limit.
// A Runner spawns one child per call, streams its stdout and stderr line by
// line, and races the child's exit against context cancellation.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
)

// maxLineBytes bounds a single output line; longer lines end the scan and
// the remainder of the stream is discarded.
const maxLineBytes = 1 << 20

// Command is one external tool invocation.
type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	return c.Path + " " + strings.Join(c.Args, " ")
}

// Sinks receive output lines as they are read. Either may be nil. Run closes
// both before returning.
type Sinks struct {
	Stdout chan<- string
	Stderr chan<- string
}

// Exit is the summary of one invocation: every line read from both streams
// and the exit status. Code is -1 when the process was killed by a signal.
type Exit struct {
	Stdout  []string      `yaml:"-"`
	Stderr  []string      `yaml:"-"`
	Code    int           `yaml:"code"`
	Elapsed time.Duration `yaml:"elapsed"`
}

// Success reports whether the process exited with status 0.
func (e *Exit) Success() bool { return e != nil && e.Code == 0 }

// StderrTail returns the last n non-empty stderr lines joined by newlines.
func (e *Exit) StderrTail(n int) string {
	if e == nil {
		return ""
	}
	var tail []string
	for i := len(e.Stderr) - 1; i >= 0 && len(tail) < n; i-- {
		if s := strings.TrimSpace(e.Stderr[i]); s != "" {
			tail = append([]string{s}, tail...)
		}
	}
	return strings.Join(tail, "\n")
}

func (e *Exit) String() string {
	if e == nil {
		return "no exit status"
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Logger is the minimal logging interface used by Runner.
type Logger interface {
	Debug(string, ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// Runner spawns external processes, each holding one Limiter permit for its
// whole lifetime.
type Runner struct {
	limiter *Limiter
	log     Logger
}

// NewRunner returns a Runner gated by limiter. log may be nil.
func NewRunner(limiter *Limiter, log Logger) *Runner {
	if log == nil {
		log = nopLogger{}
	}
	return &Runner{limiter: limiter, log: log}
}

// Limiter returns the shared permit pool.
func (r *Runner) Limiter() *Limiter { return r.limiter }

// Run acquires a permit, starts c and reads both output streams until EOF.
//
// If the process exits on its own, Run returns its Exit and a nil error
// whatever the exit code. If ctx is cancelled first, the process (and its
// process group on unix) is killed and Run returns the partially filled Exit
// together with ErrCancelled. A start failure returns a *SpawnError.
func (r *Runner) Run(ctx context.Context, c Command, sinks Sinks) (*Exit, error) {
	defer closeSinks(sinks)

	permit, err := r.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer permit.Release()

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: c.Path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: c.Path, Err: err}
	}

	r.log.Debug("exec: %s", c)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", c.Path, ErrCancelled)
		}
		return nil, &SpawnError{Path: c.Path, Err: err}
	}

	exit := &Exit{Code: -1}
	var wg conc.WaitGroup
	wg.Go(func() { exit.Stdout = scanLines(ctx, stdout, sinks.Stdout) })
	wg.Go(func() { exit.Stderr = scanLines(ctx, stderr, sinks.Stderr) })
	wg.Wait()

	waitErr := cmd.Wait()
	exit.Elapsed = time.Since(start)

	if waitErr == nil {
		exit.Code = 0
		r.log.Debug("exit: %s: code 0 in %s", c.Path, exit.Elapsed.Round(time.Millisecond))
		return exit, nil
	}
	if ctx.Err() != nil {
		r.log.Debug("exit: %s: killed on cancellation", c.Path)
		return exit, fmt.Errorf("%s: %w", c.Path, ErrCancelled)
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		exit.Code = ee.ExitCode()
		r.log.Debug("exit: %s: code %d in %s", c.Path, exit.Code, exit.Elapsed.Round(time.Millisecond))
		return exit, nil
	}
	return exit, &WaitError{Path: c.Path, Err: waitErr}
}

// scanLines reads r to EOF, retaining every line. Lines are forwarded to sink
// until ctx is done; reading continues so the buffer stays complete.
func scanLines(ctx context.Context, r io.Reader, sink chan<- string) []string {
	var lines []string
	forward := sink != nil

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		lines = append(lines, line)
		if !forward {
			continue
		}
		select {
		case sink <- line:
		case <-ctx.Done():
			forward = false
		}
	}
	if sc.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return lines
}

func closeSinks(s Sinks) {
	if s.Stdout != nil {
		close(s.Stdout)
	}
	if s.Stderr != nil {
		close(s.Stderr)
	}
}
