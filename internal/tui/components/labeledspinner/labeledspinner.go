// Package labeledspinner shows a spinner next to a label while a slow
// operation is in flight.
package labeledspinner

import (
	"strings"

	"github.com/alkime/micclip/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is idle until Start. While idle it renders nothing and lets its
// tick loop die out.
type Model struct {
	spinner spinner.Model
	label   string
	detail  string
	active  bool
}

// New returns an idle spinner. detail is rendered dimmed after the label.
func New(s spinner.Spinner, label, detail string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		spinner: sp,
		label:   label,
		detail:  detail,
	}
}

// Start shows the spinner and kicks off its tick loop.
func (m Model) Start() (Model, tea.Cmd) {
	if m.active {
		return m, nil
	}

	m.active = true

	return m, m.spinner.Tick
}

// Stop hides the spinner.
func (m Model) Stop() Model {
	m.active = false
	return m
}

func (m Model) Active() bool {
	return m.active
}

// Update advances the animation. Ticks arriving while idle are dropped.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok || !m.active {
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(tick)

	return m, cmd
}

func (m Model) View() string {
	if !m.active {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(m.label))

	if m.detail != "" {
		sb.WriteString("  ")
		sb.WriteString(style.Subtitle.Render(m.detail))
	}

	return sb.String()
}
