package tui

import (
	"strings"

	"github.com/alkime/micclip/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Record key.Binding
	Pause  key.Binding
	Play   key.Binding
	Upload key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Record: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "start/stop"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
		Play: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "upload"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// helpLine renders "[key] desc" hints for the enabled bindings.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))

	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}

		h := b.Help()
		parts = append(parts,
			style.Help.Render("[")+style.Key.Render(h.Key)+style.Help.Render("] "+h.Desc))
	}

	return strings.Join(parts, "  ")
}
