package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stratum/internal/protocol"
)

// auditModel is a read-only bubbletea model that re-polls a flow's audit
// trace on an interval. It never sends anything but "audit" requests and
// never mutates flow state.
type auditModel struct {
	transport *protocol.Transport
	flowID    string
	interval  time.Duration
	spinner   spinner.Model
	polling   bool

	trace []protocol.TraceEntry
	err   error
}

func newAuditModel(t *protocol.Transport, flowID string, interval time.Duration) auditModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return auditModel{transport: t, flowID: flowID, interval: interval, spinner: sp}
}

type auditTickMsg struct{}

type auditResultMsg struct {
	resp *protocol.AuditResponse
	err  error
}

func (m auditModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), m.tick(), m.spinner.Tick)
}

func (m auditModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return auditTickMsg{} })
}

func (m auditModel) poll() tea.Cmd {
	m.polling = true
	return func() tea.Msg {
		resp, err := fetchAudit(m.transport, m.flowID)
		return auditResultMsg{resp: resp, err: err}
	}
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case auditTickMsg:
		m.polling = true
		return m, tea.Batch(m.poll(), m.tick())
	case auditResultMsg:
		m.polling = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.trace = msg.resp.Trace
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

var (
	auditTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	auditDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	auditErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m auditModel) View() string {
	var b strings.Builder
	b.WriteString(auditTitle.Render(fmt.Sprintf("flow %s", m.flowID)))
	if m.polling {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(auditErr.Render(m.err.Error()))
		b.WriteString("\n")
	}
	for _, t := range m.trace {
		b.WriteString(fmt.Sprintf("  %-20s %-20s attempt=%d outcome=%s\n", t.StepID, t.Function, t.Attempts, t.Outcome))
	}
	b.WriteString(auditDim.Render("\nq to quit"))
	return b.String()
}
