package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/stitch/internal/pipeline"
)

const (
	barWidth     = 30
	maxNameWidth = 40
)

// styles holds the lipgloss styles of the live view. Without color every
// style is the zero style.
type styles struct {
	colored bool
	name    lipgloss.Style
	phase   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
}

func newStyles(colored bool) styles {
	if !colored {
		return styles{}
	}
	return styles{
		colored: true,
		name:    lipgloss.NewStyle().Bold(true),
		phase:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func newBar() progress.Model {
	return progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
}

// renderer draws job views. It holds no job state.
type renderer struct {
	st  styles
	bar progress.Model
}

func newRenderer(colored bool) renderer {
	return renderer{st: newStyles(colored), bar: newBar()}
}

func (r renderer) icon(v JobView) string {
	switch v.Status {
	case StatusFinished:
		return r.st.ok.Render("✔")
	case StatusFailed:
		return r.st.fail.Render("✘")
	default:
		return r.st.phase.Render("•")
	}
}

func (r renderer) renderBar(frac float64) string {
	if r.st.colored {
		return r.bar.ViewAs(frac)
	}
	filled := int(frac * barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

// timing renders "cur / total" plus the remaining estimate while encoding
// and the encode time once finished.
func (r renderer) timing(v JobView, now time.Time) string {
	if v.Total <= 0 {
		return ""
	}
	s := FormatSeconds(v.Current) + " / " + FormatSeconds(v.Total)
	switch v.Status {
	case StatusFinished:
		s = FormatSeconds(v.Total) + " in " + FormatDuration(v.Elapsed(now))
	case StatusRunning:
		if left, ok := v.Remaining(now); ok {
			s += "  ~" + FormatSeconds(left.Seconds()) + " left"
		}
	}
	return r.st.muted.Render(s)
}

// line renders one job: icon, name, phase, bar, timing. Warnings and errors
// follow on their own indented lines.
func (r renderer) line(v JobView, nameWidth int, now time.Time) string {
	name := truncate(v.Target, nameWidth)
	name += strings.Repeat(" ", nameWidth-lipgloss.Width(name))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s", r.icon(v), r.st.name.Render(name), r.st.phase.Render(fmt.Sprintf("%-28s", v.Phase)))
	if v.Phase == pipeline.PhaseEncoding || v.Status == StatusFinished {
		b.WriteString(" " + r.renderBar(v.Fraction()))
	}
	if t := r.timing(v, now); t != "" {
		b.WriteString("  " + t)
	}
	if v.Status == StatusFinished && v.OutputBytes > 0 {
		b.WriteString(r.st.muted.Render("  " + FormatBytes(v.OutputBytes)))
	}
	if v.Warning != "" {
		b.WriteString("\n    " + r.st.warn.Render("! "+v.Warning))
	}
	if v.Err != nil {
		b.WriteString("\n    " + r.st.fail.Render(v.Err.Error()))
	}
	return b.String()
}

// jobs renders every view, one block per job.
func (r renderer) jobs(views []JobView, now time.Time) string {
	width := 0
	for _, v := range views {
		width = max(width, lipgloss.Width(v.Target))
	}
	width = min(width, maxNameWidth)

	lines := make([]string, len(views))
	for i, v := range views {
		lines[i] = r.line(v, width, now)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 1 || len(runes) <= 1 {
		return string(runes[:min(n, len(runes))])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
