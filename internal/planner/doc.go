// Package planner compiles a stitch spec file into validated, immutable
// Plans. A Plan names one output target and its ordered input sources; the
// pipeline package runs one job per Plan.
//
// Spec grammar, one construct per line:
//
//	target.mp4:          target line, column 0
//		clip1.mp4        source line, single leading tab
//		!filter          flag line: per-target encode mode (filter | concat)
//		!!bang.mp4       source line for a file named "!bang.mp4"
//	                     blank line closes the open block
//
// Implemented:
//   - Plan, PlanPath, Mode (types.go)
//   - Compile, CompileFile: single-pass parse plus an aggregated validation
//     pass (compile.go)
//   - ParseError, ValidationError, Violation (errors.go)
package planner
