//go:build unix

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/stitch/internal/planner"
	"github.com/backmassage/stitch/internal/probe"
	"github.com/backmassage/stitch/internal/process"
)

// fakeFFprobe answers both probes from "duration=" and "audio=1" lines in
// the probed file.
const fakeFFprobe = `#!/bin/sh
for last; do :; done
case "$*" in
*format=duration*) sed -n 's/^duration=//p' "$last" ;;
*stream=codec_type*) grep -q '^audio=1' "$last" && echo audio ;;
esac
exit 0
`

// fakeFFmpegOK records its argv next to the target, reports progress and
// writes the target.
const fakeFFmpegOK = `#!/bin/sh
for last; do :; done
printf '%s\n' "$@" > "$last.args"
echo "out_time_us=N/A"
echo "out_time_us=1000000"
echo "out_time_us=2000000"
echo "progress=end"
printf 'stitched' > "$last"
`

// fakeFFmpegHang reports one progress line and then blocks.
const fakeFFmpegHang = `#!/bin/sh
for last; do :; done
echo $$ > "$last.pid"
echo "out_time_us=500000"
exec sleep 30
`

const fakeFFmpegFail = `#!/bin/sh
for last; do :; done
printf 'partial' > "$last"
echo "[concat @ 0x5] Unsafe file name '/x'" >&2
exit 1
`

type harness struct {
	t      *testing.T
	dir    string
	engine *Engine
	sink   *Sink
}

func newHarness(t *testing.T, ffmpegScript string, limit int) *harness {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in"), 0o755))
	ffmpegPath := filepath.Join(bin, "ffmpeg")
	ffprobePath := filepath.Join(bin, "ffprobe")
	require.NoError(t, os.WriteFile(ffmpegPath, []byte(ffmpegScript), 0o755))
	require.NoError(t, os.WriteFile(ffprobePath, []byte(fakeFFprobe), 0o755))

	runner := process.NewRunner(process.NewLimiter(limit), nil)
	sink := NewSink(100)
	opts := Options{FFmpeg: ffmpegPath, Settings: testSettings(), TempDir: t.TempDir()}
	return &harness{
		t:      t,
		dir:    dir,
		engine: NewEngine(opts, runner, probe.NewProber(runner, ffprobePath), sink, nil),
		sink:   sink,
	}
}

// source writes a fake media file whose content drives fakeFFprobe.
func (h *harness) source(name string, seconds float64, audio bool) string {
	h.t.Helper()
	content := "duration=" + strconv.FormatFloat(seconds, 'f', -1, 64) + "\n"
	if audio {
		content += "audio=1\n"
	}
	require.NoError(h.t, os.WriteFile(filepath.Join(h.dir, "in", name), []byte(content), 0o644))
	return name
}

func (h *harness) run(ctx context.Context, plans ...planner.Plan) (RunStats, map[uuid.UUID][]Event) {
	statsc := make(chan RunStats, 1)
	go func() { statsc <- h.engine.Run(ctx, plans) }()
	events := collectEvents(h.sink)
	return <-statsc, events
}

func TestEngine_ConcatFinished(t *testing.T) {
	h := newHarness(t, fakeFFmpegOK, 4)
	h.source("a.mp4", 12.5, true)
	h.source("b.mp4", 4, true)
	plan := testPlan(h.dir, "final.mp4", planner.ModeDefault, "a.mp4", "b.mp4")

	stats, byJob := h.run(context.Background(), plan)
	events := onlyJob(t, byJob)
	requireWellFormed(t, events)

	// Phase order is fixed.
	var kinds []string
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case Progress:
			if len(kinds) == 0 || kinds[len(kinds)-1] != "Progress" {
				kinds = append(kinds, "Progress")
			}
		case Phase:
			kinds = append(kinds, "Phase:"+p.Label)
		default:
			kinds = append(kinds, typeName(p))
		}
	}
	assert.Equal(t, []string{
		"Start",
		"Phase:" + PhasePreparing,
		"Prepared",
		"Phase:" + PhaseProbing,
		"Info",
		"Phase:" + PhaseEncoding,
		"Progress",
		"Finished",
	}, kinds)

	info := payloadsOf[Info](events)[0]
	assert.Equal(t, Info{SourceCount: 2, TotalSeconds: 16.5, HasAudio: true, Mode: "concat"}, info)

	progress := payloadsOf[Progress](events)
	require.Len(t, progress, 2, "out_time_us=N/A is ignored")
	assert.Equal(t, Progress{TotalSeconds: 16.5, CurrentSeconds: 1}, progress[0])
	assert.Equal(t, Progress{TotalSeconds: 16.5, CurrentSeconds: 2}, progress[1])

	prepared := payloadsOf[Prepared](events)[0]
	manifest, err := os.ReadFile(prepared.Manifest)
	require.NoError(t, err)
	assert.Equal(t,
		"file '"+filepath.Join(h.dir, "in", "a.mp4")+"'\nfile '"+filepath.Join(h.dir, "in", "b.mp4")+"'",
		string(manifest))

	args, err := os.ReadFile(plan.Target.Path + ".args")
	require.NoError(t, err)
	assert.Contains(t, string(args), "concat\n-safe\n0\n-i\n"+prepared.Manifest+"\n")

	finished := payloadsOf[Finished](events)[0]
	assert.True(t, finished.Exit.Success())
	assert.Equal(t, int64(len("stitched")), finished.OutputBytes)

	assert.Equal(t, 1, stats.Finished)
	assert.Equal(t, int64(len("stitched")), stats.TotalOutputBytes)
	assert.True(t, stats.OK())
}

func TestEngine_FilterPartialAudio(t *testing.T) {
	h := newHarness(t, fakeFFmpegOK, 4)
	h.source("s1.mp4", 5, true)
	h.source("s2.mp4", 5, false)
	plan := testPlan(h.dir, "mixed.mp4", planner.ModeFilter, "s1.mp4", "s2.mp4")

	stats, byJob := h.run(context.Background(), plan)
	events := onlyJob(t, byJob)
	requireWellFormed(t, events)

	info := payloadsOf[Info](events)[0]
	assert.False(t, info.HasAudio)
	assert.Equal(t, "filter_complex", info.Mode)

	warnings := payloadsOf[Warning](events)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "1/2")

	args, err := os.ReadFile(plan.Target.Path + ".args")
	require.NoError(t, err)
	assert.NotContains(t, string(args), "[outa]")
	assert.NotContains(t, string(args), "-c:a")
	assert.Contains(t, string(args), "concat=n=2:v=1:a=0[outv]")
	assert.Equal(t, 1, stats.Finished)
}

func TestEngine_NonZeroExitFails(t *testing.T) {
	h := newHarness(t, fakeFFmpegFail, 2)
	h.source("a.mp4", 1, true)
	plan := testPlan(h.dir, "bad.mp4", planner.ModeConcat, "a.mp4")

	stats, byJob := h.run(context.Background(), plan)
	events := onlyJob(t, byJob)
	requireWellFormed(t, events)

	failed := payloadsOf[Failed](events)
	require.Len(t, failed, 1)
	var ee *EncodeError
	require.ErrorAs(t, failed[0].Err, &ee)
	assert.Equal(t, 1, ee.Exit.Code)
	assert.Equal(t, "concat demuxer rejected a manifest entry", ee.Diagnosis)
	assert.Empty(t, payloadsOf[Finished](events))

	_, err := os.Stat(plan.Target.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "partial output removed")
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Cancelled)
}

func TestEngine_JobsAreIndependent(t *testing.T) {
	h := newHarness(t, fakeFFmpegOK, 2)
	h.source("a.mp4", 1, true)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "in", "noduration.mp4"), []byte("audio=1\n"), 0o644))

	good := testPlan(h.dir, "good.mp4", planner.ModeConcat, "a.mp4")
	bad := testPlan(h.dir, "bad.mp4", planner.ModeConcat, "noduration.mp4")

	stats, byJob := h.run(context.Background(), good, bad)
	require.Len(t, byJob, 2)
	for _, events := range byJob {
		requireWellFormed(t, events)
	}
	assert.Equal(t, 1, stats.Finished)
	assert.Equal(t, 1, stats.Failed)
}

func TestEngine_CancelFailsEveryJob(t *testing.T) {
	const n = 3
	h := newHarness(t, fakeFFmpegHang, n+1)
	var plans []planner.Plan
	for i := range n {
		src := h.source("clip"+strconv.Itoa(i)+".mp4", 2, true)
		plans = append(plans, testPlan(h.dir, "out"+strconv.Itoa(i)+".mp4", planner.ModeConcat, src))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statsc := make(chan RunStats, 1)
	go func() { statsc <- h.engine.Run(ctx, plans) }()

	byJob := make(map[uuid.UUID][]Event)
	encoding := make(map[uuid.UUID]bool)
	timeout := time.After(10 * time.Second)
	for len(encoding) < n {
		select {
		case ev := <-h.sink.Events():
			byJob[ev.JobID] = append(byJob[ev.JobID], ev)
			if _, ok := ev.Payload.(Progress); ok {
				encoding[ev.JobID] = true
			}
		case <-timeout:
			t.Fatalf("only %d/%d jobs reached encoding", len(encoding), n)
		}
	}
	cancel()
	for ev := range h.sink.Events() {
		byJob[ev.JobID] = append(byJob[ev.JobID], ev)
	}
	stats := <-statsc

	require.Len(t, byJob, n)
	for _, events := range byJob {
		requireWellFormed(t, events)
		failed := payloadsOf[Failed](events)
		require.Len(t, failed, 1)
		assert.ErrorIs(t, failed[0].Err, process.ErrCancelled)
	}
	assert.Equal(t, n, stats.Failed)
	assert.Equal(t, n, stats.Cancelled)

	for _, p := range plans {
		b, err := os.ReadFile(p.Target.Path + ".pid")
		require.NoError(t, err)
		pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
		require.NoError(t, err)
		assert.True(t, errors.Is(syscall.Kill(pid, 0), syscall.ESRCH), "ffmpeg %d still alive", pid)
	}
}

func TestTypeName_CoversEveryPayload(t *testing.T) {
	for _, p := range []Payload{Start{}, Prepared{}, Info{}, Phase{}, Progress{}, Warning{}, Finished{}, Failed{}} {
		assert.NotEqual(t, "?", typeName(p), "%T", p)
	}
}

func typeName(p Payload) string {
	switch p.(type) {
	case Start:
		return "Start"
	case Prepared:
		return "Prepared"
	case Info:
		return "Info"
	case Phase:
		return "Phase"
	case Progress:
		return "Progress"
	case Warning:
		return "Warning"
	case Finished:
		return "Finished"
	case Failed:
		return "Failed"
	default:
		return "?"
	}
}
