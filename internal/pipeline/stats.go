package pipeline

import "time"

// RunStats tracks aggregate counters and byte totals across a run.
// Cancelled jobs are counted in both Failed and Cancelled.
type RunStats struct {
	Total            int
	Finished         int
	Failed           int
	Cancelled        int
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// OK reports whether every job finished.
func (s *RunStats) OK() bool {
	return s.Failed == 0 && s.Finished == s.Total
}
