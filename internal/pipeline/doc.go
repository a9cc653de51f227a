// Package pipeline runs compiled Plans: one Job per Plan, all concurrently,
// each streaming ordered Events to a shared Sink.
//
// A Job moves through Created → Started → CatfilePrepared → Probed →
// Encoding → Finished, or to Failed from any state. Jobs share nothing but
// the process limiter (inside the Runner) and the Sink.
//
// Types:
//   - Event and its payloads: Start, Prepared, Info, Phase, Warning,
//     Progress, Finished, Failed (events.go)
//   - Sink: bounded multi-producer event channel (sink.go)
//   - Job: per-plan state machine (job.go)
//   - Engine: run-wide fan-out and RunStats (runner.go, stats.go)
//
// Functions:
//   - WriteCatfile: exclusive concat manifest creation (catfile.go)
package pipeline
