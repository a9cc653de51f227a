package planner

import (
	"fmt"
	"strings"
)

// ParseErrorKind classifies a fatal spec grammar error.
type ParseErrorKind int

const (
	SpecNotFound   ParseErrorKind = iota // Spec file does not exist.
	Open                                 // Spec file exists but cannot be opened.
	ReadLine                             // I/O error while reading.
	InvalidLine                          // Line matches no construct.
	MissingTarget                        // Source or flag line before any target line.
	MissingSources                       // Target closed by the next target line with zero sources.
	UnknownFlag                          // Flag line naming an unknown mode.
)

func (k ParseErrorKind) String() string {
	switch k {
	case SpecNotFound:
		return "spec not found"
	case Open:
		return "cannot open spec"
	case ReadLine:
		return "read error"
	case InvalidLine:
		return "invalid line"
	case MissingTarget:
		return "missing target"
	case MissingSources:
		return "missing sources"
	case UnknownFlag:
		return "unknown flag"
	default:
		return "parse error"
	}
}

// ParseError aborts compilation at the first grammar problem. Line is
// 1-based and zero for file-level errors.
type ParseError struct {
	Kind   ParseErrorKind
	Path   string
	Line   int
	Text   string
	Target string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		b.WriteString(": " + e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, ": target %q", e.Target)
	}
	if e.Text != "" {
		fmt.Fprintf(&b, ": %q", e.Text)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ViolationKind classifies one validation problem.
type ViolationKind int

const (
	DuplicateTarget ViolationKind = iota // Target leaf used by more than one block.
	DuplicateSource                      // Source leaf repeated within one block.
	MissingSource                        // Source path does not name an existing file.
	EmptyTarget                          // Block closed by a blank line or EOF with zero sources.
)

func (k ViolationKind) String() string {
	switch k {
	case DuplicateTarget:
		return "duplicate target"
	case DuplicateSource:
		return "duplicate source"
	case MissingSource:
		return "missing source"
	case EmptyTarget:
		return "target has no sources"
	default:
		return "invalid"
	}
}

// Violation is one validation problem. Source and Path are empty for
// target-level violations.
type Violation struct {
	Kind   ViolationKind
	Target string
	Source string
	Path   string
	Err    error
}

func (v *Violation) Error() string {
	switch v.Kind {
	case DuplicateTarget, EmptyTarget:
		return fmt.Sprintf("%s: %q", v.Kind, v.Target)
	case MissingSource:
		msg := fmt.Sprintf("%s: %q in target %q (%s)", v.Kind, v.Source, v.Target, v.Path)
		if v.Err != nil {
			msg += ": " + v.Err.Error()
		}
		return msg
	default:
		return fmt.Sprintf("%s: %q in target %q", v.Kind, v.Source, v.Target)
	}
}

func (v *Violation) Unwrap() error { return v.Err }

// ValidationError aggregates every Violation found in a parsed spec.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("spec validation failed with %d error(s):", len(e.Errors)))
	for _, err := range e.Errors {
		lines = append(lines, "  "+err.Error())
	}
	return strings.Join(lines, "\n")
}

func (e *ValidationError) Unwrap() []error { return e.Errors }

// Violations returns the violations of the given kind.
func (e *ValidationError) Violations(kind ViolationKind) []*Violation {
	var out []*Violation
	for _, err := range e.Errors {
		if v, ok := err.(*Violation); ok && v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}
