package display

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/backmassage/stitch/internal/pipeline"
)

// --- Messages ---

type eventMsg pipeline.Event

type streamClosedMsg struct{}

type tickMsg time.Time

const tickInterval = 250 * time.Millisecond

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// liveModel is the bubbletea model of the live view. The first Ctrl+C
// cancels the run and keeps drawing until every job has reported its
// failure; a second one quits at once.
type liveModel struct {
	mon        *Monitor
	r          renderer
	cancel     context.CancelFunc
	cancelling bool
	done       bool
}

func newLiveModel(mon *Monitor, cancel context.CancelFunc, colored bool) liveModel {
	return liveModel{mon: mon, r: newRenderer(colored), cancel: cancel}
}

func (m liveModel) Init() tea.Cmd { return tick() }

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type != tea.KeyCtrlC {
			return m, nil
		}
		if m.cancelling {
			return m, tea.Quit
		}
		m.cancelling = true
		m.cancel()
		return m, nil
	case eventMsg:
		m.mon.Apply(pipeline.Event(msg))
		return m, nil
	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m liveModel) View() string {
	var b strings.Builder
	b.WriteString(m.r.jobs(m.mon.Jobs(), m.mon.Now()))
	b.WriteString("\n")

	running, finished, failed := m.mon.Counts()
	status := m.r.st.muted.Render(
		"running " + strconv.Itoa(running) + "  finished " + strconv.Itoa(finished) + "  failed " + strconv.Itoa(failed))
	switch {
	case m.done:
	case m.cancelling:
		status += "  " + m.r.st.warn.Render("cancelling, ctrl+c again to quit")
	default:
		status += "  " + m.r.st.muted.Render("ctrl+c to cancel")
	}
	b.WriteString(status + "\n")
	return b.String()
}

// RunLive draws the live view until the sink's event channel closes, then
// closes the sink. cancel is called on the first Ctrl+C. The returned
// Monitor holds the final state of every job.
func RunLive(sink *pipeline.Sink, cancel context.CancelFunc, out io.Writer, colored bool) (*Monitor, error) {
	mon := NewMonitor()
	p := tea.NewProgram(
		newLiveModel(mon, cancel, colored),
		tea.WithOutput(out),
	)

	go func() {
		for ev := range sink.Events() {
			p.Send(eventMsg(ev))
		}
		p.Send(streamClosedMsg{})
	}()

	_, err := p.Run()
	// After a forced quit pending sends fail and their jobs stop.
	sink.Close()
	return mon, err
}
