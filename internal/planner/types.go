package planner

import (
	"fmt"
	"strings"

	"github.com/backmassage/stitch/internal/config"
)

// Mode selects how a Plan's sources are joined.
type Mode int

const (
	ModeDefault Mode = iota // No flag line; the run-wide default applies.
	ModeConcat              // Concat demuxer, stream copy.
	ModeFilter              // Filter graph, re-encode.
)

// flagModes maps flag-line names to modes. The long aliases are accepted for
// spec files written for older releases.
var flagModes = map[string]Mode{
	"concat":         ModeConcat,
	"filter":         ModeFilter,
	"concat_filter":  ModeFilter,
	"filter_complex": ModeFilter,
}

func (m Mode) String() string {
	switch m {
	case ModeConcat:
		return "concat"
	case ModeFilter:
		return "filter"
	default:
		return "default"
	}
}

// MarshalYAML renders the mode by name in --dry-run output.
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Resolve returns m, or the mode named by def when m is ModeDefault.
func (m Mode) Resolve(def config.EncodeMode) Mode {
	if m != ModeDefault {
		return m
	}
	if def == config.ModeFilter {
		return ModeFilter
	}
	return ModeConcat
}

// ParseMode parses a flag-line name (without the leading '!').
func ParseMode(name string) (Mode, error) {
	if m, ok := flagModes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m, nil
	}
	return ModeDefault, fmt.Errorf("unknown flag %q (use 'concat' or 'filter')", name)
}

// PlanPath is a leaf name as written in the spec file together with its absolute
// path resolved against the target or source base directory.
type PlanPath struct {
	Path string `yaml:"path"`
	Leaf string `yaml:"leaf"`
}

// Plan is one output target and its ordered sources. Plans are produced by
// Compile and never mutated afterwards.
type Plan struct {
	Target  PlanPath   `yaml:"target"`
	Sources []PlanPath `yaml:"sources"`
	Mode    Mode       `yaml:"mode"`
}
