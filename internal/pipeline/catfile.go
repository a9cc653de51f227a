package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/backmassage/stitch/internal/planner"
)

// CatfileError reports a failure to create or write a concat manifest.
type CatfileError struct {
	Op   string // "create" or "write"
	Path string
	Err  error
}

func (e *CatfileError) Error() string {
	return fmt.Sprintf("%s catfile %s: %v", e.Op, e.Path, e.Err)
}

func (e *CatfileError) Unwrap() error { return e.Err }

// MakeRunDir creates the per-run temporary directory holding manifests.
func MakeRunDir() (string, error) {
	return os.MkdirTemp("", "stitch-")
}

// CatfileName returns the manifest file name for a target: the NFC form of
// the leaf with separators and dots replaced, plus a short job id.
func CatfileName(target string, id uuid.UUID) string {
	name := strings.NewReplacer(".", "_", "/", "_", string(filepath.Separator), "_").Replace(norm.NFC.String(target))
	return fmt.Sprintf("%s-%s.catfile", name, id.String()[:8])
}

// CatfileContent renders one "file '<path>'" line per source in order.
func CatfileContent(sources []planner.PlanPath) string {
	lines := make([]string, len(sources))
	for i, src := range sources {
		lines[i] = "file " + quoteConcatPath(src.Path)
	}
	return strings.Join(lines, "\n")
}

// quoteConcatPath single-quotes p for the concat demuxer, which reads an
// embedded quote as '\''.
func quoteConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

// WriteCatfile creates the manifest for plan in dir. Creation is exclusive:
// an existing file with the same name is an error, never overwritten.
func WriteCatfile(dir string, plan planner.Plan, id uuid.UUID) (string, error) {
	path := filepath.Join(dir, CatfileName(plan.Target.Leaf, id))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &CatfileError{Op: "create", Path: path, Err: err}
	}
	if _, err := f.WriteString(CatfileContent(plan.Sources)); err != nil {
		f.Close()
		return "", &CatfileError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &CatfileError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}
