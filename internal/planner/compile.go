package planner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	targetLineRe = regexp.MustCompile(`^(\S.*):$`)
	sourceLineRe = regexp.MustCompile(`^\t(.+)$`)
)

// maxLineBytes bounds a single spec line.
const maxLineBytes = 1 << 20

// CompileFile opens the spec file at path and compiles it. See Compile.
func CompileFile(path, targetDir, sourceDir string) ([]Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		kind := Open
		if errors.Is(err, fs.ErrNotExist) {
			kind = SpecNotFound
		}
		return nil, &ParseError{Kind: kind, Path: path, Err: err}
	}
	defer f.Close()

	plans, err := Compile(f, targetDir, sourceDir)
	var pe *ParseError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = path
	}
	return plans, err
}

// Compile parses spec text and validates the result. Target leaves are
// resolved against targetDir and source leaves against sourceDir; both are
// made absolute first.
//
// Grammar errors abort at the offending line with a *ParseError. Validation
// runs over every plan and reports all problems at once as a
// *ValidationError. On error no plans are returned.
func Compile(r io.Reader, targetDir, sourceDir string) ([]Plan, error) {
	targetBase, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("resolve target dir: %w", err)
	}
	sourceBase, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir: %w", err)
	}

	var (
		plans  []Plan
		open   *Plan
		lineNo int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			// Blank line closes the block even when it has no sources;
			// validation reports that case.
			if open != nil {
				plans = append(plans, *open)
				open = nil
			}
			continue
		}

		if m := targetLineRe.FindStringSubmatch(line); m != nil {
			if open != nil {
				if len(open.Sources) == 0 {
					return nil, &ParseError{Kind: MissingSources, Line: lineNo, Target: open.Target.Leaf}
				}
				plans = append(plans, *open)
			}
			name := strings.TrimSpace(m[1])
			if name == "" {
				// \S is ASCII-only; a name of Unicode spaces trims to nothing
				// and would point the target at the target directory.
				return nil, &ParseError{Kind: InvalidLine, Line: lineNo, Text: line}
			}
			open = &Plan{Target: PlanPath{Path: filepath.Join(targetBase, name), Leaf: name}}
			continue
		}

		if m := sourceLineRe.FindStringSubmatch(line); m != nil {
			body := strings.TrimSpace(m[1])
			if body == "" {
				return nil, &ParseError{Kind: InvalidLine, Line: lineNo, Text: line}
			}
			if open == nil {
				return nil, &ParseError{Kind: MissingTarget, Line: lineNo, Text: body}
			}
			if lit, ok := strings.CutPrefix(body, "!!"); ok {
				// Escaped: a source whose name starts with "!".
				body = "!" + lit
			} else if flag, ok := strings.CutPrefix(body, "!"); ok {
				mode, err := ParseMode(flag)
				if err != nil {
					return nil, &ParseError{Kind: UnknownFlag, Line: lineNo, Text: body, Target: open.Target.Leaf}
				}
				open.Mode = mode
				continue
			}
			open.Sources = append(open.Sources, PlanPath{Path: filepath.Join(sourceBase, body), Leaf: body})
			continue
		}

		return nil, &ParseError{Kind: InvalidLine, Line: lineNo, Text: line}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Kind: ReadLine, Line: lineNo + 1, Err: err}
	}
	if open != nil {
		plans = append(plans, *open)
	}

	if err := validate(plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// validate checks every plan and collects all violations.
func validate(plans []Plan) error {
	var errs []error
	targets := make(map[string]bool, len(plans))

	for _, p := range plans {
		if targets[p.Target.Leaf] {
			errs = append(errs, &Violation{Kind: DuplicateTarget, Target: p.Target.Leaf, Path: p.Target.Path})
		}
		targets[p.Target.Leaf] = true

		if len(p.Sources) == 0 {
			errs = append(errs, &Violation{Kind: EmptyTarget, Target: p.Target.Leaf, Path: p.Target.Path})
		}

		seen := make(map[string]bool, len(p.Sources))
		for _, s := range p.Sources {
			if seen[s.Leaf] {
				errs = append(errs, &Violation{Kind: DuplicateSource, Target: p.Target.Leaf, Source: s.Leaf, Path: s.Path})
				continue
			}
			seen[s.Leaf] = true

			if err := checkSourceFile(s.Path); err != nil {
				errs = append(errs, &Violation{Kind: MissingSource, Target: p.Target.Leaf, Source: s.Leaf, Path: s.Path, Err: err})
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func checkSourceFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("is a directory")
	}
	return nil
}
