package display

import (
	"github.com/backmassage/stitch/internal/pipeline"
)

// LogSummary reports the run totals and one line per failed job.
func LogSummary(log Logger, mon *Monitor, stats pipeline.RunStats) {
	log.Info("==============================")
	log.Info("Done: %d stitched, %d failed (%d cancelled) in %s",
		stats.Finished, stats.Failed, stats.Cancelled, FormatDuration(stats.Elapsed))
	log.Info("Summary report:")
	log.Info("  Total targets: %d", stats.Total)

	for _, v := range mon.Jobs() {
		switch v.Status {
		case StatusFinished:
			log.Info("  %s: %s", v.Target, FormatBytes(v.OutputBytes))
		case StatusFailed:
			log.Error("  %s: %v", v.Target, v.Err)
		}
	}

	if stats.OK() {
		log.Success("  Total output: %s", FormatBytes(stats.TotalOutputBytes))
	} else {
		log.Warn("  Total output: %s (%d target(s) not written)",
			FormatBytes(stats.TotalOutputBytes), stats.Total-stats.Finished)
	}
}
