package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/backmassage/stitch/internal/ffmpeg"
	"github.com/backmassage/stitch/internal/logging"
	"github.com/backmassage/stitch/internal/planner"
	"github.com/backmassage/stitch/internal/process"
)

// State is a Job's position in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateCatfilePrepared
	StateProbed
	StateEncoding
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateCatfilePrepared:
		return "catfile prepared"
	case StateProbed:
		return "probed"
	case StateEncoding:
		return "encoding"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Prober inspects one source file. Implemented by *probe.Prober.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
	HasAudio(ctx context.Context, path string) (bool, error)
}

// SourceError ties a probe failure to the source it concerns.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string { return e.Source + ": " + e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

// AudioProbeError lists every source whose audio probe failed.
type AudioProbeError struct {
	Errors []error
}

func (e *AudioProbeError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("audio probe failed for %d source(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AudioProbeError) Unwrap() []error { return e.Errors }

// EncodeError reports an ffmpeg run that exited non-zero.
type EncodeError struct {
	Target    string
	Exit      *process.Exit
	Diagnosis string
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed for %s: %s", e.Target, e.Exit)
	if e.Diagnosis != "" {
		msg += " (" + e.Diagnosis + ")"
	}
	if tail := e.Exit.StderrTail(1); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Job runs one Plan. It owns its id, its event sequence and its Plan; it
// shares only the Runner (and so the limiter) and the Sink.
type Job struct {
	id     uuid.UUID
	plan   planner.Plan
	mode   planner.Mode
	opts   Options
	runner *process.Runner
	prober Prober
	sink   *Sink
	log    *logging.Logger

	mu          sync.Mutex
	seq         uint64
	state       State
	outputBytes int64
}

// ID returns the job id carried by every event.
func (j *Job) ID() uuid.UUID { return j.id }

// Plan returns the job's plan.
func (j *Job) Plan() planner.Plan { return j.plan }

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// OutputBytes returns the size of the written target after a successful run.
func (j *Job) OutputBytes() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputBytes
}

// Run drives the job to Finished or Failed. The returned error is nil
// exactly when Finished was emitted. When the sink is closed the job stops
// at once and the error wraps ErrSinkClosed.
func (j *Job) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := j.advance(StateStarted, Start{Target: j.plan.Target.Leaf}); err != nil {
		return err
	}

	// --- Catfile ---
	if err := j.emit(Phase{Label: PhasePreparing}); err != nil {
		return err
	}
	manifest, err := WriteCatfile(j.opts.TempDir, j.plan, j.id)
	if err != nil {
		return j.fail(err)
	}
	j.log.Debug("manifest %s", manifest)
	if err := j.advance(StateCatfilePrepared, Prepared{Manifest: manifest}); err != nil {
		return err
	}

	// --- Probe ---
	if err := j.emit(Phase{Label: PhaseProbing}); err != nil {
		return err
	}
	total, audio, err := j.probe(ctx)
	if err != nil {
		return j.fail(err)
	}
	hasAudio := ffmpeg.AllHaveAudio(j.plan, audio)
	n := len(j.plan.Sources)
	info := Info{
		SourceCount:  n,
		TotalSeconds: total,
		HasAudio:     hasAudio,
		Mode:         ffmpeg.ModeLabel(j.mode),
	}
	j.log.Debug("probed %d source(s): %.3fs, audio=%t, mode=%s", n, total, hasAudio, info.Mode)
	if err := j.advance(StateProbed, info); err != nil {
		return err
	}
	if j.mode == planner.ModeFilter && !hasAudio {
		k := ffmpeg.CountWithAudio(j.plan, audio)
		if err := j.emit(Warning{Message: fmt.Sprintf("%d/%d sources have audio - output will be video-only", k, n)}); err != nil {
			return err
		}
	}

	// --- Encode ---
	if err := j.advance(StateEncoding, Phase{Label: PhaseEncoding}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.plan.Target.Path), 0o755); err != nil {
		return j.fail(fmt.Errorf("create target directory: %w", err))
	}
	args := ffmpeg.Build(j.opts.Settings, j.plan, j.mode, manifest, audio)
	exit, err := ffmpeg.Execute(ctx, j.runner, j.opts.FFmpeg, args, func(sec float64) error {
		return j.emit(Progress{TotalSeconds: total, CurrentSeconds: sec})
	})
	switch {
	case errors.Is(err, ErrSinkClosed):
		j.removeTarget()
		return err
	case err != nil:
		if exit != nil {
			j.removeTarget()
		}
		return j.fail(err)
	case !exit.Success():
		j.removeTarget()
		return j.fail(&EncodeError{Target: j.plan.Target.Leaf, Exit: exit, Diagnosis: ffmpeg.Diagnose(exit.Stderr)})
	}

	var size int64
	if fi, err := os.Stat(j.plan.Target.Path); err == nil {
		size = fi.Size()
	}
	j.mu.Lock()
	j.outputBytes = size
	j.mu.Unlock()

	return j.advance(StateFinished, Finished{Exit: exit, OutputBytes: size})
}

// probe runs the duration and audio fan-outs concurrently and waits for
// both. Durations fail fast; audio failures are collected.
func (j *Job) probe(ctx context.Context) (float64, map[string]bool, error) {
	var (
		total    float64
		audio    map[string]bool
		durErr   error
		audioErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { total, durErr = j.totalDuration(ctx) })
	wg.Go(func() { audio, audioErr = j.detectAudio(ctx) })
	wg.Wait()

	if err := errors.Join(durErr, audioErr); err != nil {
		return 0, nil, err
	}
	return total, audio, nil
}

func (j *Job) totalDuration(ctx context.Context) (float64, error) {
	p := pool.NewWithResults[float64]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, src := range j.plan.Sources {
		p.Go(func(ctx context.Context) (float64, error) {
			d, err := j.prober.Duration(ctx, src.Path)
			if err != nil {
				return 0, &SourceError{Source: src.Leaf, Err: err}
			}
			return d, nil
		})
	}
	durations, err := p.Wait()
	if err != nil {
		return 0, fmt.Errorf("duration probe: %w", err)
	}

	var total float64
	for _, d := range durations {
		total += d
	}
	return total, nil
}

type audioResult struct {
	path string
	has  bool
	err  error
}

func (j *Job) detectAudio(ctx context.Context) (map[string]bool, error) {
	p := pool.NewWithResults[audioResult]()
	for _, src := range j.plan.Sources {
		p.Go(func() audioResult {
			has, err := j.prober.HasAudio(ctx, src.Path)
			if err != nil {
				err = &SourceError{Source: src.Leaf, Err: err}
			}
			return audioResult{path: src.Path, has: has, err: err}
		})
	}

	audio := make(map[string]bool, len(j.plan.Sources))
	var failures []error
	for _, r := range p.Wait() {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		audio[r.path] = r.has
	}
	if len(failures) > 0 {
		return nil, &AudioProbeError{Errors: failures}
	}
	return audio, nil
}

// emit sends p with the next sequence number. The counter only advances on
// a successful send, so the consumer never sees a gap.
func (j *Job) emit(p Payload) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sendLocked(p)
}

// advance moves to state s and emits p as one step.
func (j *Job) advance(s State, p Payload) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
	return j.sendLocked(p)
}

func (j *Job) sendLocked(p Payload) error {
	if err := j.sink.Send(Event{JobID: j.id, Seq: j.seq, Payload: p}); err != nil {
		j.state = StateFailed
		return fmt.Errorf("job %s: %w", j.plan.Target.Leaf, err)
	}
	j.seq++
	return nil
}

// fail moves the job to Failed and reports err as its terminal event.
func (j *Job) fail(err error) error {
	j.log.Debug("failed: %v", err)
	if sendErr := j.advance(StateFailed, Failed{Err: err}); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (j *Job) removeTarget() {
	if err := os.Remove(j.plan.Target.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.log.Debug("remove partial output: %v", err)
	}
}
