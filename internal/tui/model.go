// Package tui is the terminal front end: it maps key presses to recording
// transitions and renders the session, the waveform and notices.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/micclip/internal/recorder"
	"github.com/alkime/micclip/internal/tui/components/labeledspinner"
	"github.com/alkime/micclip/internal/tui/components/waveform"
	"github.com/alkime/micclip/internal/tui/style"
	"github.com/alkime/micclip/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Machine is the recording lifecycle driven by the UI.
type Machine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Tick(e recorder.Elapsed) bool
	Ticks() <-chan recorder.Elapsed
	Session() recorder.Session
	Clip() (recorder.Clip, bool)
}

// Uploader sends a finished clip somewhere.
type Uploader interface {
	Upload(ctx context.Context, clip recorder.Clip) error
}

// Config wires the model to its controls.
type Config struct {
	Context  context.Context //nolint:containedctx // owned by the program run
	Cancel   context.CancelFunc
	Machine  Machine
	Sampler  waveform.Sampler
	Canvas   *waveform.Canvas
	Playback uictl.Knob
	Uploader Uploader
	// UploadURL is shown while an upload is in flight.
	UploadURL     string
	FileSize      uictl.CappedDial[int64]
	FrameInterval time.Duration
}

type transitionMsg struct {
	op  string
	err error
}

type elapsedMsg recorder.Elapsed

type uploadMsg struct {
	err error
}

type notice struct {
	text string
	err  bool
}

type model struct {
	ctx    context.Context //nolint:containedctx // see Config.Context
	cancel context.CancelFunc

	machine  Machine
	playback uictl.Knob
	uploader Uploader
	fileSize uictl.CappedDial[int64]

	keys      keyMap
	waveform  waveform.Model
	spinner   spinner.Model
	uploading labeledspinner.Model
	progress  progress.Model

	// pending names the transition in flight, if any.
	pending   string
	notice    notice
	uploadURL string
}

// New creates the root model.
func New(cfg Config) tea.Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	s := spinner.New()
	s.Spinner = spinner.Points

	return model{
		ctx:       ctx,
		cancel:    cfg.Cancel,
		machine:   cfg.Machine,
		playback:  cfg.Playback,
		uploader:  cfg.Uploader,
		fileSize:  cfg.FileSize,
		keys:      defaultKeyMap(),
		waveform:  waveform.New(cfg.Sampler, cfg.Canvas, cfg.FrameInterval),
		spinner:   s,
		uploading: labeledspinner.New(spinner.Dot, "Uploading", cfg.UploadURL),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		uploadURL: cfg.UploadURL,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		listenTicks(m.machine.Ticks()),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case transitionMsg:
		m.pending = ""
		m.handleTransition(msg)

		var cmd tea.Cmd
		m.waveform, cmd = m.waveform.Sync()

		return m, cmd

	case elapsedMsg:
		m.machine.Tick(recorder.Elapsed(msg))
		return m, listenTicks(m.machine.Ticks())

	case uploadMsg:
		m.uploading = m.uploading.Stop()
		m.handleUpload(msg.err)

		return m, nil

	case waveform.FrameMsg:
		var cmd tea.Cmd
		m.waveform, cmd = m.waveform.Update(msg)

		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

		m.uploading, cmd = m.uploading.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model) //nolint:forcetypeassert // bubbles library contract
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}

		return m, tea.Quit

	case key.Matches(msg, m.keys.Record):
		if m.pending != "" {
			return m, nil
		}

		switch m.machine.Session().Status {
		case recorder.StatusRecording, recorder.StatusPaused:
			if m.playback != nil {
				m.playback.Off()
			}
			return m.transition("stop", m.machine.Stop)
		default:
			m.notice = notice{}
			return m.transition("start", m.machine.Start)
		}

	case key.Matches(msg, m.keys.Pause):
		if m.pending != "" {
			return m, nil
		}

		if m.machine.Session().Status == recorder.StatusPaused {
			return m.transition("resume", m.machine.Resume)
		}

		return m.transition("pause", m.machine.Pause)

	case key.Matches(msg, m.keys.Play):
		if _, ok := m.machine.Clip(); ok && m.playback != nil {
			m.playback.Toggle()
		}

		return m, nil

	case key.Matches(msg, m.keys.Upload):
		if m.uploading.Active() {
			return m, nil
		}

		var spin tea.Cmd
		m.uploading, spin = m.uploading.Start()
		m.notice = notice{}

		return m, tea.Batch(m.upload(), spin)
	}

	return m, nil
}

func (m model) transition(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.pending = op
	ctx := m.ctx

	return m, func() tea.Msg {
		return transitionMsg{op: op, err: fn(ctx)}
	}
}

func (m *model) handleTransition(msg transitionMsg) {
	switch {
	case msg.err == nil:
		slog.Debug("transition done", "op", msg.op, "status", m.machine.Session().Status)
	case errors.Is(msg.err, recorder.ErrInvalidTransition):
		// never shown to the user
		slog.Debug("transition ignored", "op", msg.op, "error", msg.err)
	default:
		slog.Error("transition failed", "op", msg.op, "error", msg.err)
		m.notice = notice{text: msg.err.Error(), err: true}
	}
}

func (m model) upload() tea.Cmd {
	ctx := m.ctx
	clip, _ := m.machine.Clip()
	uploader := m.uploader

	return func() tea.Msg {
		if uploader == nil {
			return uploadMsg{err: errors.New("uploads are not configured")}
		}

		return uploadMsg{err: uploader.Upload(ctx, clip)}
	}
}

func (m *model) handleUpload(err error) {
	if err != nil {
		slog.Error("upload failed", "error", err)
		m.notice = notice{text: err.Error(), err: true}

		return
	}

	m.notice = notice{text: "Uploaded voice."}
}

func (m model) View() string {
	var sb strings.Builder

	s := m.machine.Session()
	_, hasClip := m.machine.Clip()

	sb.WriteString(m.header(s))
	sb.WriteString("\n\n")

	sb.WriteString(style.Panel.Render(m.waveform.View()))
	sb.WriteString("\n\n")

	if m.fileSize != nil && s.Status != recorder.StatusIdle {
		current, maxValue := m.fileSize.Cap()
		percent := float64(0)
		if maxValue > 0 {
			percent = min(1, float64(current)/float64(maxValue))
		}

		sb.WriteString(m.progress.ViewAs(percent))
		sb.WriteString("\n")
		sb.WriteString(style.Subtitle.Render(formatBytes(current, maxValue)))
		sb.WriteString("\n\n")
	}

	if m.uploading.Active() {
		sb.WriteString(m.uploading.View())
		sb.WriteString("\n\n")
	} else if m.notice.text != "" {
		if m.notice.err {
			sb.WriteString(style.Error.Render(m.notice.text))
		} else {
			sb.WriteString(style.Success.Render(m.notice.text))
		}
		sb.WriteString("\n\n")
	}

	keys := m.keys
	recording := s.Status == recorder.StatusRecording || s.Status == recorder.StatusPaused
	keys.Pause.SetEnabled(recording)
	keys.Play.SetEnabled(hasClip && m.playback != nil)
	keys.Upload.SetEnabled(hasClip)

	sb.WriteString(helpLine(keys.Record, keys.Pause, keys.Play, keys.Upload, keys.Quit))

	return sb.String()
}

func (m model) header(s recorder.Session) string {
	elapsed := style.Subtitle.Render(s.Elapsed.String())

	switch s.Status {
	case recorder.StatusRecording:
		return m.spinner.View() + " " + style.Title.Render("Recording") + " " + elapsed
	case recorder.StatusPaused:
		return style.Warning.Render("Paused") + " " + elapsed
	case recorder.StatusStopped:
		playing := ""
		if m.playback != nil && m.playback.Read() {
			playing = " " + style.Title.Render("Playing")
		}
		return style.Success.Render("Stopped") + " " + elapsed + playing
	case recorder.StatusIdle:
		fallthrough
	default:
		if m.pending == "start" {
			return m.spinner.View() + " " + style.Muted.Render("Opening microphone")
		}
		return style.Muted.Render("Ready")
	}
}

// listenTicks waits for the next elapsed time tick.
func listenTicks(ticks <-chan recorder.Elapsed) tea.Cmd {
	if ticks == nil {
		return nil
	}

	return func() tea.Msg {
		e, ok := <-ticks
		if !ok {
			return nil
		}

		return elapsedMsg(e)
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(current, maxBytes int64) string {
	currentMB := float64(current) / (1024 * 1024)
	maxMB := float64(maxBytes) / (1024 * 1024)

	if maxBytes == 0 {
		return fmt.Sprintf("%.1f MB / unlimited", currentMB)
	}

	percent := int(float64(current) / float64(maxBytes) * 100)

	return fmt.Sprintf("%.1f MB / %.1f MB (%d%%)", currentMB, maxMB, percent)
}
