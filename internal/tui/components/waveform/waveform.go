// Package waveform provides a TUI component that shows the live waveform.
package waveform

import (
	"strings"
	"time"

	"github.com/alkime/micclip/internal/tui/style"
	tea "github.com/charmbracelet/bubbletea"
)

// FrameMsg asks for one redraw of the activation it was scheduled for.
type FrameMsg struct {
	Gen uint64
}

// Sampler is the live waveform source.
type Sampler interface {
	// Frame draws one frame and reports whether gen is still active.
	Frame(gen uint64) bool
	Active() (gen uint64, ok bool)
}

// Model drives the frame loop and renders the canvas.
//
// A frame is only scheduled from the handler of the previous one, so at most
// one FrameMsg per activation is in flight.
type Model struct {
	sampler  Sampler
	canvas   *Canvas
	interval time.Duration
	loopGen  uint64
}

// New creates a waveform model. The sampler must draw onto canvas.
func New(sampler Sampler, canvas *Canvas, interval time.Duration) Model {
	return Model{
		sampler:  sampler,
		canvas:   canvas,
		interval: interval,
	}
}

// Sync starts a frame loop if the sampler has a new activation.
func (m Model) Sync() (Model, tea.Cmd) {
	if m.sampler == nil {
		return m, nil
	}

	gen, ok := m.sampler.Active()
	if !ok || gen == m.loopGen {
		return m, nil
	}

	m.loopGen = gen

	return m, m.frame(gen)
}

// Update handles frame messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if fm, ok := msg.(FrameMsg); ok {
		if m.sampler != nil && m.sampler.Frame(fm.Gen) {
			return m, m.frame(fm.Gen)
		}
	}

	return m, nil
}

// View renders the last published frame.
func (m Model) View() string {
	if m.canvas == nil {
		return ""
	}

	lines := m.canvas.Lines()
	for i, l := range lines {
		lines[i] = style.Progress.Render(l)
	}

	return strings.Join(lines, "\n")
}

func (m Model) frame(gen uint64) tea.Cmd {
	return tea.Tick(m.interval, func(_ time.Time) tea.Msg {
		return FrameMsg{Gen: gen}
	})
}
