package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crmigrate/internal/models"
	"github.com/desertthunder/crmigrate/internal/tasks"
)

const recentLines = 6

// row tracks one data type's progress through the run.
type row struct {
	total    int
	created  int
	present  int
	skipped  int
	failed   int
	done     bool
	bar      progress.Model
	failures []tasks.Failure
}

func (r *row) processed() int {
	return r.created + r.present + r.skipped + r.failed
}

// Model represents the dashboard state.
type Model struct {
	events       <-chan tasks.Event
	cancel       context.CancelFunc
	order        []models.DataType
	rows         map[models.DataType]*row
	recent       []string
	width        int
	showFailures bool
	finished     bool
	cancelled    bool
	help         help.Model
	keys         keyMap
}

type eventMsg tasks.Event

// streamClosedMsg signals that the producer closed the event channel, i.e.
// the run is over.
type streamClosedMsg struct{}

// NewModel creates a dashboard consuming events from the given channel.
// cancel is invoked on the first quit keypress so the run winds down before
// the program exits.
func NewModel(events <-chan tasks.Event, cancel context.CancelFunc) *Model {
	return &Model{
		events: events,
		cancel: cancel,
		rows:   make(map[models.DataType]*row),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init starts reading the event stream.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, r := range m.rows {
			r.bar.Width = barWidth(m.width)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			m.showFailures = !m.showFailures
			return m, nil
		case "q", "ctrl+c":
			if m.finished {
				return m, tea.Quit
			}
			// First press asks the run to stop; the stream closing brings
			// the program down once in-flight writes have settled.
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, nil

	case eventMsg:
		m.apply(tasks.Event(msg))
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.finished = true
		if m.cancelled {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) apply(ev tasks.Event) {
	r, ok := m.rows[ev.DataType]
	if !ok {
		r = &row{bar: progress.New(progress.WithDefaultGradient())}
		r.bar.Width = barWidth(m.width)
		m.rows[ev.DataType] = r
		m.order = append(m.order, ev.DataType)
	}

	switch ev.Kind {
	case tasks.RunStarted:
		r.total = ev.Total

	case tasks.ItemProcessed:
		switch ev.Outcome {
		case tasks.OutcomeCreated:
			r.created++
			m.remember(styles.ok.Render("+ ") + ev.Label)
		case tasks.OutcomeAlreadyPresent:
			r.present++
			m.remember(styles.present.Render("= ") + ev.Label)
		case tasks.OutcomeSkipped:
			r.skipped++
			m.remember(styles.warn.Render("~ ") + ev.Label)
		case tasks.OutcomeFailed:
			r.failed++
			r.failures = append(r.failures, tasks.Failure{Key: ev.Key, Label: ev.Label, Reason: ev.Reason})
			m.remember(styles.err.Render("x ") + fmt.Sprintf("%s (%s)", ev.Label, ev.Reason))
		}

	case tasks.RunFinished:
		r.done = true
		if ev.Summary != nil {
			r.created = ev.Summary.Created
			r.present = ev.Summary.AlreadyPresent
			r.skipped = ev.Summary.Skipped
			r.failed = ev.Summary.Failed
			r.failures = ev.Summary.Failures
		}
	}
}

func (m *Model) remember(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > recentLines {
		m.recent = m.recent[len(m.recent)-recentLines:]
	}
}

// View renders the per-type rows, the recent item tail, and contextual help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Migrating profile data"))
	b.WriteString("\n\n")

	for _, dt := range m.order {
		r := m.rows[dt]
		b.WriteString(m.renderRow(dt, r))
		b.WriteString("\n")
	}

	if m.showFailures {
		b.WriteString(m.renderFailures())
	} else if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, line := range m.recent {
			b.WriteString("  " + line + "\n")
		}
	}

	if m.cancelled && !m.finished {
		b.WriteString("\n" + styles.warn.Render("Stopping, letting in-flight writes finish...") + "\n")
	}
	if m.finished {
		b.WriteString("\n" + styles.ok.Render("Done.") + " Press q to exit.\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderRow(dt models.DataType, r *row) string {
	pct := 0.0
	if r.total > 0 {
		pct = float64(r.processed()) / float64(r.total)
	} else if r.done {
		pct = 1.0
	}

	counts := fmt.Sprintf("%s %s %s",
		styles.ok.Render(fmt.Sprintf("%d added", r.created)),
		styles.present.Render(fmt.Sprintf("%d there", r.present)),
		styles.err.Render(fmt.Sprintf("%d failed", r.failed)),
	)
	if r.skipped > 0 {
		counts += " " + styles.warn.Render(fmt.Sprintf("%d skipped", r.skipped))
	}

	return fmt.Sprintf("%-10s %s %4d/%-4d  %s",
		dt.String(), r.bar.ViewAs(pct), r.processed(), r.total, counts)
}

func (m *Model) renderFailures() string {
	var b strings.Builder
	b.WriteString("\n" + styles.err.Render("Failures") + "\n")

	count := 0
	for _, dt := range m.order {
		for _, f := range m.rows[dt].failures {
			b.WriteString(fmt.Sprintf("  %s: %s (%s)\n", dt.String(), f.Label, f.Reason))
			count++
		}
	}
	if count == 0 {
		b.WriteString("  none\n")
	}
	return b.String()
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func barWidth(termWidth int) int {
	if termWidth == 0 {
		return 30
	}
	w := termWidth - 50
	if w < 10 {
		w = 10
	}
	if w > 40 {
		w = 40
	}
	return w
}
