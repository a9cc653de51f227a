// Command stitch concatenates groups of media clips into named output files,
// as described by a spec file, by driving ffmpeg and ffprobe.
//
// It parses flags, validates configuration and the spec file, and either runs
// system diagnostics (--check), prints the compiled plans (--dry-run) or
// runs every plan concurrently.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backmassage/stitch/internal/check"
	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/display"
	"github.com/backmassage/stitch/internal/logging"
	"github.com/backmassage/stitch/internal/pipeline"
	"github.com/backmassage/stitch/internal/planner"
	"github.com/backmassage/stitch/internal/probe"
	"github.com/backmassage/stitch/internal/process"
	"github.com/backmassage/stitch/internal/term"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "0.1.0"
	commit  = "unknown"
)

// errExit carries a non-zero exit status out of RunE after the failure has
// already been reported.
var errExit = errors.New("exit 1")

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(os.Stderr, "stitch: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:     "stitch SPEC_FILE",
		Short:   "Concatenate media clips into named outputs with ffmpeg",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Args:    cobra.MaximumNArgs(1),
		Long: `stitch reads a spec file listing output targets, each followed by the
tab-indented source clips it is made of, and builds every target
concurrently with ffmpeg.

  final.mp4:
  	intro.mp4
  	scene1.mp4

A tab-indented "!filter" line under a target re-encodes it through a filter
graph instead of the concat demuxer. A source named "!x.mp4" is written
"!!x.mp4".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bootstrap: the logger doesn't exist yet, so errors are
			// returned and printed to stderr by run.
			if err := config.Bind(v, cmd.Flags(), &cfg); err != nil {
				return err
			}
			if err := config.ReadConfigFile(v, configFile); err != nil {
				return err
			}
			if err := config.Load(v, cmd.Flags(), args, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if code := execute(cmd.Context(), &cfg); code != 0 {
				return errExit
			}
			return nil
		},
	}
	config.DefineFlags(cmd.Flags(), &cfg)
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file (default: $XDG_CONFIG_HOME/stitch/config.yaml)")
	return cmd
}

// execute runs with a ready configuration and returns the exit status.
func execute(parent context.Context, cfg *config.Config) int {
	log, err := logging.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stitch: %v\n", err)
		return 1
	}
	defer log.Close()

	// Logger available: all output goes through log from here on.
	printBanner(os.Stdout, cfg)

	if cfg.CheckOnly {
		if !check.RunCheck(cfg, log) {
			return 1
		}
		return 0
	}

	tools, err := check.ResolveTools(cfg)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	log.Debug("ffmpeg: %s", tools.FFmpeg)
	log.Debug("ffprobe: %s", tools.FFprobe)

	if err := os.MkdirAll(cfg.TargetDir, 0o755); err != nil {
		log.Error("Cannot create target directory: %s", cfg.TargetDir)
		return 1
	}

	plans, err := planner.CompileFile(cfg.SpecPath, cfg.TargetDir, cfg.SourcesDir)
	if err != nil {
		reportCompileError(log, err)
		return 1
	}

	if cfg.DryRun {
		if err := display.WriteDryRun(os.Stdout, tools, plans, cfg.Mode); err != nil {
			log.Error("%v", err)
			return 1
		}
		return 0
	}
	if len(plans) == 0 {
		log.Warn("No targets in %s", cfg.SpecPath)
		return 0
	}

	log.Info("=== stitch v%s ===", version)
	log.Info("Spec:    %s (%d target(s))", cfg.SpecPath, len(plans))
	log.Info("Sources: %s", cfg.SourcesDir)
	log.Info("Targets: %s", cfg.TargetDir)

	stats, mon, err := runPlans(parent, cfg, log, tools, plans)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	display.LogSummary(log, mon, stats)
	if !stats.OK() {
		return 1
	}
	return 0
}

// runPlans wires the engine and feeds its events to the live view or to
// the log.
func runPlans(
	parent context.Context,
	cfg *config.Config,
	log *logging.Logger,
	tools check.Tools,
	plans []planner.Plan,
) (pipeline.RunStats, *display.Monitor, error) {
	tempDir, err := pipeline.MakeRunDir()
	if err != nil {
		return pipeline.RunStats{}, nil, err
	}
	if cfg.KeepTemp {
		log.Info("Manifests kept in %s", tempDir)
	} else {
		defer os.RemoveAll(tempDir)
	}

	// Cancel every job on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	cancels := &cancelTracker{cancel: cancel}

	log = log.With("spec", cfg.SpecPath)
	limiter := process.NewLimiter(cfg.MaxProcs)
	defer limiter.Close()
	runner := process.NewRunner(limiter, log)
	sink := pipeline.NewSink(cfg.EventBuffer)
	engine := pipeline.NewEngine(
		pipeline.OptionsFromConfig(cfg, tools, tempDir),
		runner,
		probe.NewProber(runner, tools.FFprobe),
		sink,
		log,
	)

	statsc := make(chan pipeline.RunStats, 1)
	go func() { statsc <- engine.Run(ctx, plans) }()

	var mon *display.Monitor
	if !cfg.Verbose && term.IsTerminal(os.Stdout) {
		log.SetConsole(false)
		mon, err = display.RunLive(sink, cancels.byUser, os.Stdout, term.Enabled())
		log.SetConsole(true)
		if err != nil {
			// The jobs stop on the closed sink; the view is gone.
			cancel()
			log.Error("live view: %v", err)
		}
	} else {
		mon = display.RunLog(sink.Events(), log)
	}

	stats := <-statsc
	if cancels.interrupted(sigCtx) {
		log.Warn("Interrupted")
	}
	return stats, mon, nil
}

// cancelTracker records whether the run was cancelled from the keyboard, as
// opposed to internally after the live view failed.
type cancelTracker struct {
	cancel context.CancelFunc
	user   atomic.Bool
}

func (c *cancelTracker) byUser() {
	c.user.Store(true)
	c.cancel()
}

// interrupted reports a signal on sigCtx or a keyboard cancel.
func (c *cancelTracker) interrupted(sigCtx context.Context) bool {
	return c.user.Load() || sigCtx.Err() != nil
}

// printBanner writes the banner unless stdout carries dry-run YAML.
func printBanner(w io.Writer, cfg *config.Config) {
	if cfg.DryRun {
		return
	}
	display.PrintBanner(w, term.Enabled())
}

// reportCompileError prints every spec problem, one per line.
func reportCompileError(log *logging.Logger, err error) {
	var verr *planner.ValidationError
	if errors.As(err, &verr) {
		log.Error("spec validation failed with %d error(s):", len(verr.Errors))
		for _, e := range verr.Errors {
			log.Error("  %v", e)
		}
		return
	}
	log.Error("%v", err)
}
