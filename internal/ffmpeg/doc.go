// Package ffmpeg builds and executes the single ffmpeg invocation that joins
// a Plan's sources into its target.
//
// Types:
//   - Settings: encode parameters resolved once from the run configuration.
//
// Functions:
//   - Build(Settings, Plan, Mode, manifest, audio) → []string
//     Shared preamble plus either the concat-demuxer (stream copy) or the
//     filter-graph (re-encode) strategy. The filter graph mixes audio only
//     when every source has an audio stream.
//   - Execute(ctx, runner, bin, args, onProgress) → *process.Exit
//     Runs ffmpeg through the shared runner and reports out_time_us
//     progress markers from stdout.
//   - ParseProgress(line): out_time_us=<n> marker parsing.
//   - Diagnose(stderr): classifies well-known failures for error messages.
//
// Split into builder.go, executor.go, progress.go, errors.go.
package ffmpeg
