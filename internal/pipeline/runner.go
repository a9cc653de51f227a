package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/backmassage/stitch/internal/check"
	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/ffmpeg"
	"github.com/backmassage/stitch/internal/logging"
	"github.com/backmassage/stitch/internal/planner"
	"github.com/backmassage/stitch/internal/process"
)

// Options is the immutable run configuration shared by every job.
type Options struct {
	FFmpeg      string
	Settings    ffmpeg.Settings
	DefaultMode config.EncodeMode
	TempDir     string
}

// OptionsFromConfig builds Options from the validated configuration, the
// resolved tools and the per-run temporary directory.
func OptionsFromConfig(cfg *config.Config, tools check.Tools, tempDir string) Options {
	return Options{
		FFmpeg:      tools.FFmpeg,
		Settings:    ffmpeg.SettingsFromConfig(cfg),
		DefaultMode: cfg.Mode,
		TempDir:     tempDir,
	}
}

// Engine runs every Plan of a spec concurrently.
type Engine struct {
	opts   Options
	runner *process.Runner
	prober Prober
	sink   *Sink
	log    *logging.Logger
}

// NewEngine wires an Engine. log may be nil.
func NewEngine(opts Options, runner *process.Runner, prober Prober, sink *Sink, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{opts: opts, runner: runner, prober: prober, sink: sink, log: log}
}

// NewJob creates a Job for plan, resolving its encode mode against the
// run-wide default.
func (e *Engine) NewJob(plan planner.Plan) *Job {
	id := uuid.New()
	return &Job{
		id:     id,
		plan:   plan,
		mode:   plan.Mode.Resolve(e.opts.DefaultMode),
		opts:   e.opts,
		runner: e.runner,
		prober: e.prober,
		sink:   e.sink,
		log:    e.log.WithJob(id.String()[:8], plan.Target.Leaf),
	}
}

// Run starts one job per plan, waits for all of them, closes the sink's
// event channel and returns the aggregate stats. A failing job never stops
// its siblings; cancelling ctx fails every job still running.
func (e *Engine) Run(ctx context.Context, plans []planner.Plan) RunStats {
	defer e.sink.finish()

	start := time.Now()
	stats := RunStats{Total: len(plans)}
	var mu sync.Mutex

	var wg conc.WaitGroup
	for _, plan := range plans {
		job := e.NewJob(plan)
		wg.Go(func() {
			err := job.Run(ctx)

			mu.Lock()
			defer mu.Unlock()
			stats.record(err, job.OutputBytes())
		})
	}
	wg.Wait()

	stats.Elapsed = time.Since(start)
	return stats
}

func (s *RunStats) record(err error, outputBytes int64) {
	switch {
	case err == nil:
		s.Finished++
		s.TotalOutputBytes += outputBytes
	case errors.Is(err, process.ErrCancelled):
		s.Failed++
		s.Cancelled++
	default:
		s.Failed++
	}
}
