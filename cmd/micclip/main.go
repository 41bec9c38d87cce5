package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/alkime/micclip/internal/audio"
	"github.com/alkime/micclip/internal/capture"
	"github.com/alkime/micclip/internal/config"
	"github.com/alkime/micclip/internal/logger"
	"github.com/alkime/micclip/internal/playback"
	"github.com/alkime/micclip/internal/recorder"
	"github.com/alkime/micclip/internal/tui"
	tuiwaveform "github.com/alkime/micclip/internal/tui/components/waveform"
	"github.com/alkime/micclip/internal/upload"
	"github.com/alkime/micclip/internal/waveform"
	"github.com/alkime/micclip/internal/workdir"
	"github.com/alkime/micclip/pkg/collections"
	tea "github.com/charmbracelet/bubbletea"
)

// CLI defines the micclip command structure.
type CLI struct {
	// Default TUI command (runs when no subcommand given)
	TUI TUICmd `cmd:"" default:"withargs" help:"Record, play back and upload a clip"`

	Devices DevicesCmd `cmd:"" help:"List available capture devices"`
	Render  RenderCmd  `cmd:"" help:"Render the waveform of a WAV clip to a PNG image"`
}

// TUICmd is the default command that runs the TUI.
type TUICmd struct {
	UploadURL string `flag:"" optional:"" help:"Upload endpoint (overrides UPLOAD_URL)"`
	Cols      int    `flag:"" default:"60" help:"Waveform width in terminal cells"`
	Rows      int    `flag:"" default:"6" help:"Waveform height in terminal cells"`
}

// Run executes the TUI command.
func (c *TUICmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// the TUI owns the terminal, so logs go to a file
	logger.SetupLogger(cfg)
	fmt.Fprintf(os.Stderr, "logging to %s\n", cfg.LogPath())

	if c.UploadURL != "" {
		cfg.UploadURL = c.UploadURL
	}

	clipDir, err := workdir.ClipDir(cfg.ClipDir)
	if err != nil {
		return err
	}
	if err := workdir.Prep(clipDir); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := capture.NewSession(capture.Config{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		TickInterval: cfg.TickInterval,
		MaxBytes:     cfg.MaxBytes,
		Dir:          clipDir,
	})
	defer session.Close(context.Background())

	machine := recorder.NewMachine(session)

	renderer := waveform.DefaultRenderer()
	canvas := tuiwaveform.NewCanvas(c.Cols, c.Rows)
	sampler := waveform.NewSampler(session, canvas, renderer)
	// runs before session.Close so the analysis tap is released first
	defer sampler.Deactivate()
	static := waveform.NewStaticView(canvas, renderer)
	static.Clear()

	player := playback.NewController(playback.NewDevicePlayer(nil))
	defer player.Unload(context.Background())

	bindActions(machine, sampler, static, player)

	model := tui.New(tui.Config{
		Context:       ctx,
		Cancel:        cancel,
		Machine:       machine,
		Sampler:       sampler,
		Canvas:        canvas,
		Playback:      player,
		Uploader:      upload.New(cfg.UploadURL, cfg.UploadTimeout),
		UploadURL:     cfg.UploadURL,
		FileSize:      session,
		FrameInterval: cfg.FrameInterval,
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}

type liveView interface {
	Activate(ctx context.Context) (uint64, error)
	Deactivate()
}

type clipView interface {
	Show(blob []byte) error
	Clear()
}

type clipPlayer interface {
	Load(ctx context.Context, clip recorder.Clip) error
	Unload(ctx context.Context)
}

// bindActions hands the display between the live sampler and the static
// view as the machine moves through its states.
func bindActions(m *recorder.Machine, live liveView, static clipView, player clipPlayer) {
	m.OnEnter(recorder.StatusRecording, func(ctx context.Context, _ recorder.Session) error {
		_, err := live.Activate(ctx)
		return err
	})
	m.OnExit(recorder.StatusRecording, func(context.Context, recorder.Session) error {
		live.Deactivate()
		return nil
	})

	m.OnEnter(recorder.StatusStopped, func(ctx context.Context, s recorder.Session) error {
		if s.Clip == nil {
			return errors.New("stopped without a clip")
		}

		return errors.Join(
			static.Show(s.Clip.Blob),
			player.Load(ctx, *s.Clip),
		)
	})
	m.OnExit(recorder.StatusStopped, func(ctx context.Context, _ recorder.Session) error {
		player.Unload(ctx)
		static.Clear()
		return nil
	})
}

// DevicesCmd lists available capture devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(nil)
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	slog.Info("Capture devices found",
		"total", len(devices),
		"default", collections.Count(devices, func(d audio.Info) bool { return d.IsDefault }),
	)

	return nil
}

// RenderCmd draws the static waveform of a clip.
type RenderCmd struct {
	Clip   string `arg:"" type:"existingfile" help:"WAV clip to render"`
	Output string `arg:"" help:"PNG file to write"`
	Width  int    `flag:"" default:"500" help:"Image width in pixels"`
	Height int    `flag:"" default:"100" help:"Image height in pixels"`
}

// Run executes the render command.
func (c *RenderCmd) Run() error {
	blob, err := os.ReadFile(c.Clip)
	if err != nil {
		return fmt.Errorf("failed to read clip: %w", err)
	}

	raster := waveform.NewRaster(c.Width, c.Height)
	if err := waveform.NewStaticView(raster, waveform.DefaultRenderer()).Show(blob); err != nil {
		return err
	}

	if err := raster.SavePNG(c.Output); err != nil {
		return err
	}

	slog.Info("Waveform rendered", "clip", c.Clip, "output", c.Output)

	return nil
}

func main() {
	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("micclip"),
		kong.Description("Record a clip from the microphone, play it back and upload it."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
