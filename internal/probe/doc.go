// Package probe provides the two read-only ffprobe inspections a job needs
// per source: the container duration and whether any audio stream exists.
// Each probe is one ffprobe invocation run through a process.Runner, so it
// holds a limiter permit for its lifetime and dies with the job's context.
//
// Output parsing is split from execution (ParseDuration, ParseHasAudio) so it
// can be tested without an ffprobe binary.
package probe
