package display

import (
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/stitch/internal/pipeline"
)

// JobStatus is the display-side outcome of a job.
type JobStatus int

const (
	StatusRunning JobStatus = iota
	StatusFinished
	StatusFailed
)

// JobView is the latest known state of one job, folded from its events.
type JobView struct {
	ID          uuid.UUID
	Target      string
	Phase       string
	Mode        string
	Sources     int
	HasAudio    bool
	Total       float64
	Current     float64
	Warning     string
	Err         error
	Status      JobStatus
	OutputBytes int64

	encodeStart time.Time
	ended       time.Time
}

// Fraction is the encoded share of the expected total, clamped to [0, 1].
func (v JobView) Fraction() float64 {
	switch {
	case v.Status == StatusFinished:
		return 1
	case v.Total <= 0:
		return 0
	case v.Current >= v.Total:
		return 1
	}
	return v.Current / v.Total
}

// Remaining extrapolates the wall-clock time left from the encode speed so
// far. ok is false until at least one progress update has arrived.
func (v JobView) Remaining(now time.Time) (time.Duration, bool) {
	if v.Status != StatusRunning || v.encodeStart.IsZero() || v.Current <= 0 || v.Total <= 0 {
		return 0, false
	}
	elapsed := now.Sub(v.encodeStart)
	left := v.Total - v.Current
	if left <= 0 {
		return 0, true
	}
	return time.Duration(float64(elapsed) * left / v.Current), true
}

// Elapsed is the encode wall-clock time, frozen once the job has ended.
func (v JobView) Elapsed(now time.Time) time.Duration {
	if v.encodeStart.IsZero() {
		return 0
	}
	if !v.ended.IsZero() {
		now = v.ended
	}
	return now.Sub(v.encodeStart)
}

// Monitor folds the event stream into one JobView per job, in the order
// the jobs first reported. It is not safe for concurrent use; the single
// event consumer owns it.
type Monitor struct {
	order []uuid.UUID
	jobs  map[uuid.UUID]*JobView
	now   func() time.Time
}

// NewMonitor returns an empty Monitor using the wall clock.
func NewMonitor() *Monitor {
	return &Monitor{jobs: make(map[uuid.UUID]*JobView), now: time.Now}
}

// Apply records ev.
func (m *Monitor) Apply(ev pipeline.Event) {
	v, ok := m.jobs[ev.JobID]
	if !ok {
		v = &JobView{ID: ev.JobID}
		m.jobs[ev.JobID] = v
		m.order = append(m.order, ev.JobID)
	}

	switch p := ev.Payload.(type) {
	case pipeline.Start:
		v.Target = p.Target
		v.Phase = "Starting"
	case pipeline.Prepared:
	case pipeline.Info:
		v.Sources = p.SourceCount
		v.Total = p.TotalSeconds
		v.HasAudio = p.HasAudio
		v.Mode = p.Mode
	case pipeline.Phase:
		v.Phase = p.Label
		if p.Label == pipeline.PhaseEncoding {
			v.encodeStart = m.now()
		}
	case pipeline.Warning:
		v.Warning = p.Message
	case pipeline.Progress:
		v.Total = p.TotalSeconds
		v.Current = p.CurrentSeconds
	case pipeline.Finished:
		v.Status = StatusFinished
		v.Phase = "Done"
		v.OutputBytes = p.OutputBytes
		v.ended = m.now()
	case pipeline.Failed:
		v.Status = StatusFailed
		v.Phase = "Failed"
		v.Err = p.Err
		v.ended = m.now()
	}
}

// Job returns the view for id.
func (m *Monitor) Job(id uuid.UUID) (JobView, bool) {
	v, ok := m.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return *v, true
}

// Jobs returns a snapshot of every job in first-seen order.
func (m *Monitor) Jobs() []JobView {
	out := make([]JobView, len(m.order))
	for i, id := range m.order {
		out[i] = *m.jobs[id]
	}
	return out
}

// Counts returns how many jobs are running, finished and failed.
func (m *Monitor) Counts() (running, finished, failed int) {
	for _, v := range m.jobs {
		switch v.Status {
		case StatusRunning:
			running++
		case StatusFinished:
			finished++
		case StatusFailed:
			failed++
		}
	}
	return running, finished, failed
}

// Now returns the monitor's clock reading.
func (m *Monitor) Now() time.Time { return m.now() }
