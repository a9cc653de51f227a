package display

import (
	"github.com/google/uuid"

	"github.com/backmassage/stitch/internal/pipeline"
)

// Logger is the subset of *logging.Logger used by the plain consumer and
// the summary.
type Logger interface {
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// progressStep is the share of the total between two logged progress lines.
const progressStep = 0.10

// RunLog consumes the event stream as log lines, for verbose runs and
// non-terminal output. It returns once events is closed.
func RunLog(events <-chan pipeline.Event, log Logger) *Monitor {
	mon := NewMonitor()
	lastStep := make(map[uuid.UUID]int)

	for ev := range events {
		mon.Apply(ev)
		v, _ := mon.Job(ev.JobID)
		tag := "[" + v.Target + "] "

		switch p := ev.Payload.(type) {
		case pipeline.Start:
			log.Info("%sstarted", tag)
		case pipeline.Prepared:
			log.Debug("%smanifest %s", tag, p.Manifest)
		case pipeline.Info:
			log.Info("%s%d source(s), %s total, mode %s, audio %t",
				tag, p.SourceCount, FormatSeconds(p.TotalSeconds), p.Mode, p.HasAudio)
		case pipeline.Phase:
			log.Debug("%s%s", tag, p.Label)
		case pipeline.Warning:
			log.Warn("%s%s", tag, p.Message)
		case pipeline.Progress:
			step := int(v.Fraction() / progressStep)
			if step > lastStep[ev.JobID] {
				lastStep[ev.JobID] = step
				log.Info("%s%3.0f%%  %s / %s", tag, v.Fraction()*100,
					FormatSeconds(p.CurrentSeconds), FormatSeconds(p.TotalSeconds))
			}
		case pipeline.Finished:
			log.Success("%sdone, %s", tag, FormatBytes(p.OutputBytes))
		case pipeline.Failed:
			log.Error("%sfailed: %v", tag, p.Err)
		}
	}
	return mon
}
