package display

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/backmassage/stitch/internal/check"
	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/planner"
)

type dryRunReport struct {
	Tools check.Tools    `yaml:"tools"`
	Plans []planner.Plan `yaml:"plans"`
}

// WriteDryRun prints the resolved tools and every compiled plan as YAML.
// Plans without a flag line show the mode def resolves them to.
func WriteDryRun(w io.Writer, tools check.Tools, plans []planner.Plan, def config.EncodeMode) error {
	report := dryRunReport{Tools: tools, Plans: make([]planner.Plan, len(plans))}
	for i, p := range plans {
		p.Mode = p.Mode.Resolve(def)
		report.Plans[i] = p
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
