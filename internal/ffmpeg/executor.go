package ffmpeg

import (
	"context"

	"github.com/sourcegraph/conc"

	"github.com/backmassage/stitch/internal/process"
)

// ProgressFunc receives the encoded position in seconds. A non-nil error
// aborts the encode.
type ProgressFunc func(seconds float64) error

// Execute runs ffmpeg with args through r. Each out_time_us marker on stdout
// is passed to onProgress; stderr is drained (it is retained in the returned
// Exit for diagnosis).
//
// The returned error is nil whenever ffmpeg ran to completion, whatever its
// exit code. If onProgress fails, the encode is cancelled and that error is
// returned.
func Execute(ctx context.Context, r *process.Runner, bin string, args []string, onProgress ProgressFunc) (*process.Exit, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdout := make(chan string)
	stderr := make(chan string)

	var progressErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		for line := range stdout {
			sec, ok := ParseProgress(line)
			if !ok || progressErr != nil || onProgress == nil {
				continue
			}
			if err := onProgress(sec); err != nil {
				progressErr = err
				cancel()
			}
		}
	})
	wg.Go(func() {
		for range stderr {
		}
	})

	exit, err := r.Run(ctx, process.Command{Path: bin, Args: args}, process.Sinks{Stdout: stdout, Stderr: stderr})
	wg.Wait()

	if progressErr != nil {
		return exit, progressErr
	}
	return exit, err
}
