// Package capture drives the microphone: it spools PCM to disk while
// recording, reports elapsed time, fans the live stream out to analysis taps
// and encodes the finished recording as a WAV clip.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/micclip/internal/audio"
	"github.com/alkime/micclip/internal/recorder"
	"github.com/alkime/micclip/internal/waveform"
	"github.com/alkime/micclip/pkg/channels"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

// ErrNotCapturing is returned by operations that need a running capture.
var ErrNotCapturing = errors.New("capture not started")

const (
	packetBuffer = 64
	tapBuffer    = 16
)

// Config holds capture settings.
type Config struct {
	SampleRate   int
	Channels     int
	TickInterval time.Duration
	// MaxBytes caps the progress display; capture is not cut off.
	MaxBytes int64
	// Dir holds scratch files. Empty means the OS temp dir.
	Dir string
}

// Session is a microphone capture session.
type Session struct {
	cfg     Config
	factory audio.Factory
	clock   func() time.Time
	ticks   chan recorder.Elapsed

	// mu serializes Start, Pause, Resume and Stop.
	mu       sync.Mutex
	dev      audio.Device
	dataC    chan audio.DataPacket
	bcast    *channels.Broadcaster[audio.DataPacket]
	cancel   context.CancelFunc
	pumpWG   sync.WaitGroup
	tickWG   sync.WaitGroup
	clipPath string

	sp atomic.Pointer[spool]

	timeMu  sync.Mutex
	accrued time.Duration
	since   time.Time
	running bool
}

// Option customizes a Session.
type Option func(*Session)

// WithDeviceFactory replaces the malgo device factory.
func WithDeviceFactory(f audio.Factory) Option {
	return func(s *Session) { s.factory = f }
}

// WithClock replaces time.Now for elapsed time accounting.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// NewSession returns an idle capture session.
func NewSession(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		factory: audio.NewDevice,
		clock:   time.Now,
		ticks:   make(chan recorder.Elapsed, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start acquires the capture device and begins spooling.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		return errors.New("capture already started")
	}

	s.removeClip()

	dev := s.factory(&audio.DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: s.cfg.Channels,
		SampleRate:      s.cfg.SampleRate,
	})

	infos, err := dev.EnumerateDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", recorder.ErrDeviceUnavailable, err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("%w: %w", recorder.ErrDeviceUnavailable, audio.ErrNoCaptureDevice)
	}

	dataC := make(chan audio.DataPacket, packetBuffer)
	if err := dev.CaptureInto(ctx, dataC); err != nil {
		return fmt.Errorf("%w: %w", recorder.ErrDeviceUnavailable, err)
	}

	// the session outlives the request that started it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	spoolC := make(chan audio.DataPacket, packetBuffer)
	sp, err := newSpool(s.cfg.Dir, s.cfg.SampleRate, s.cfg.Channels, spoolC)
	if err != nil {
		cancel()
		dev.Dealloc(ctx)
		return err
	}

	bcast := channels.NewBroadcaster[audio.DataPacket]()
	input, err := bcast.Run(runCtx)
	if err != nil {
		cancel()
		dev.Dealloc(ctx)
		sp.discard()
		return err
	}

	if err := dev.Start(ctx); err != nil {
		cancel()
		dev.Dealloc(ctx)
		sp.discard()
		return fmt.Errorf("%w: %w", recorder.ErrDeviceUnavailable, err)
	}

	sp.start(runCtx)

	s.dev = dev
	s.dataC = dataC
	s.bcast = bcast
	s.sp.Store(sp)
	s.cancel = cancel
	s.setRunning(true, true)

	s.pumpWG.Go(func() {
		s.pump(dataC, spoolC, input)
	})
	s.tickWG.Go(func() {
		s.tick(runCtx)
	})

	slog.Info("capture started", "sampleRate", s.cfg.SampleRate, "channels", s.cfg.Channels)

	return nil
}

// pump copies device packets to the spool, which must not lose data, and to
// the analysis broadcaster, which may.
func (s *Session) pump(dataC <-chan audio.DataPacket, spoolC chan<- audio.DataPacket, input chan<- audio.DataPacket) {
	defer close(spoolC)

	for pkt := range dataC {
		spoolC <- pkt
		_ = channels.SendNonBlock(input, pkt)
	}
}

func (s *Session) tick(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e, running := s.elapsed(); running {
				_ = channels.SendNonBlock(s.ticks, e)
			}
		}
	}
}

// Pause stops the device without releasing it.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return ErrNotCapturing
	}

	if !s.dev.IsStarted() {
		return nil
	}

	if err := s.dev.Stop(ctx); err != nil {
		return fmt.Errorf("failed to pause capture: %w", err)
	}

	s.setRunning(false, false)

	return nil
}

// Resume restarts a paused device.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return ErrNotCapturing
	}

	if s.dev.IsStarted() {
		return nil
	}

	if err := s.dev.Start(ctx); err != nil {
		return fmt.Errorf("failed to resume capture: %w", err)
	}

	s.setRunning(true, false)

	return nil
}

// Stop releases the device and encodes everything captured into a WAV clip.
// The clip file stays on disk until the next Start or Close.
func (s *Session) Stop(ctx context.Context) (recorder.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return recorder.Clip{}, ErrNotCapturing
	}

	s.setRunning(false, false)

	if err := s.dev.Stop(ctx); err != nil {
		slog.Warn("failed to stop capture device", "error", err)
	}
	s.dev.Dealloc(ctx)
	s.dev = nil

	// no more device callbacks; drain what is buffered into the spool
	// before the broadcaster and ticker are shut down
	close(s.dataC)
	s.pumpWG.Wait()

	sp := s.sp.Load()
	spoolErr := sp.wait()

	s.cancel()
	s.bcast.Wait()
	s.tickWG.Wait()
	s.bcast = nil

	if spoolErr != nil {
		sp.cleanup()
		return recorder.Clip{}, fmt.Errorf("failed to spool capture: %w", spoolErr)
	}

	path, blob, err := sp.encode(s.cfg.Dir, "micclip-"+uuid.NewString()+"-*.wav")
	if err != nil {
		return recorder.Clip{}, fmt.Errorf("failed to encode clip: %w", err)
	}
	s.clipPath = path

	e, _ := s.elapsed()
	slog.Info("capture stopped", "elapsed", e.String(), "bytes", len(blob), "path", path)

	return recorder.Clip{URI: "file://" + path, Blob: blob}, nil
}

// Ticks emits elapsed time roughly every TickInterval while capturing.
func (s *Session) Ticks() <-chan recorder.Elapsed {
	return s.ticks
}

// Elapsed returns the capture time accrued so far, excluding pauses.
func (s *Session) Elapsed() recorder.Elapsed {
	e, _ := s.elapsed()
	return e
}

func (s *Session) elapsed() (recorder.Elapsed, bool) {
	s.timeMu.Lock()
	defer s.timeMu.Unlock()

	d := s.accrued
	if s.running {
		d += s.clock().Sub(s.since)
	}

	return recorder.ElapsedFrom(d), s.running
}

// setRunning moves the elapsed clock. reset zeroes accrued time first.
func (s *Session) setRunning(running, reset bool) {
	s.timeMu.Lock()
	defer s.timeMu.Unlock()

	now := s.clock()
	if reset {
		s.accrued = 0
	} else if s.running {
		s.accrued += now.Sub(s.since)
	}

	s.since = now
	s.running = running
}

// Read returns the number of PCM bytes captured in the current or last recording.
func (s *Session) Read() int64 {
	sp := s.sp.Load()
	if sp == nil {
		return 0
	}

	return sp.BytesWritten()
}

// Cap returns captured bytes against the configured display cap.
func (s *Session) Cap() (int64, int64) {
	return s.Read(), s.cfg.MaxBytes
}

// OpenStream taps the live PCM feed. Packets are dropped when the tap falls behind.
func (s *Session) OpenStream(_ context.Context) (waveform.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil || s.bcast == nil {
		return nil, ErrNotCapturing
	}

	ch := make(chan audio.DataPacket, tapBuffer)
	unsubscribe, err := s.bcast.Subscribe(ch)
	if err != nil {
		return nil, fmt.Errorf("failed to tap capture stream: %w", err)
	}

	slog.Debug("analysis tap opened", "taps", s.bcast.Len())

	return &tap{ch: ch, unsubscribe: unsubscribe, channels: s.cfg.Channels}, nil
}

// Close stops any capture in progress and removes scratch files.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	active := s.dev != nil
	s.mu.Unlock()

	if active {
		if _, err := s.Stop(ctx); err != nil {
			slog.Warn("failed to stop capture on close", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeClip()
}

func (s *Session) removeClip() {
	if s.clipPath == "" {
		return
	}

	if err := os.Remove(s.clipPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove previous clip", "path", s.clipPath, "error", err)
	}
	s.clipPath = ""
}

// ClipPath returns the local path of a file:// clip URI.
func ClipPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

type tap struct {
	ch          chan audio.DataPacket
	unsubscribe func() int
	channels    int
	once        sync.Once
}

func (t *tap) Packets() <-chan audio.DataPacket {
	return t.ch
}

func (t *tap) Channels() int {
	return t.channels
}

func (t *tap) Close() error {
	t.once.Do(func() {
		dropped := t.unsubscribe()
		close(t.ch)
		slog.Debug("analysis tap closed", "droppedPackets", dropped)
	})

	return nil
}
