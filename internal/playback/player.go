// Package playback plays a finished clip through the default output device.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alkime/micclip/internal/audio"
	"github.com/alkime/micclip/internal/recorder"
	"github.com/gen2brain/malgo"
)

// ErrNoClip is returned when playing without a loaded clip.
var ErrNoClip = errors.New("no clip loaded")

// Player is a play/pause primitive over one clip.
type Player interface {
	Load(ctx context.Context, clip recorder.Clip) error
	Unload(ctx context.Context)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	IsPlaying() bool
}

// DevicePlayer plays decoded WAV audio on an audio.Device.
type DevicePlayer struct {
	factory audio.Factory

	mu  sync.Mutex
	dev audio.Device

	// posMu is taken on the audio thread; never hold it while calling the device.
	posMu    sync.Mutex
	data     []byte
	pos      int
	finished bool
}

// NewDevicePlayer returns a player using factory to open output devices.
// A nil factory uses malgo.
func NewDevicePlayer(factory audio.Factory) *DevicePlayer {
	if factory == nil {
		factory = audio.NewDevice
	}

	return &DevicePlayer{factory: factory}
}

// Load decodes clip and opens an output device matching its format.
// Any previously loaded clip is unloaded first.
func (p *DevicePlayer) Load(ctx context.Context, clip recorder.Clip) error {
	pcm, err := audio.DecodeWAV(clip.Blob)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	p.Unload(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.posMu.Lock()
	p.data = pcm.Bytes()
	p.pos = 0
	p.finished = false
	p.posMu.Unlock()

	dev := p.factory(&audio.DeviceConfig{
		Format:           malgo.FormatS16,
		PlaybackChannels: pcm.Channels,
		SampleRate:       pcm.SampleRate,
	})

	if err := dev.PlaybackFrom(ctx, p.fill); err != nil {
		return fmt.Errorf("failed to open playback device: %w", err)
	}

	p.dev = dev

	return nil
}

// Unload stops playback and releases the device.
func (p *DevicePlayer) Unload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev == nil {
		return
	}

	_ = p.dev.Stop(ctx)
	p.dev.Dealloc(ctx)
	p.dev = nil

	p.posMu.Lock()
	p.data = nil
	p.pos = 0
	p.posMu.Unlock()
}

// Play starts or continues playback. A clip that played to the end starts over.
func (p *DevicePlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev == nil {
		return ErrNoClip
	}

	p.posMu.Lock()
	if p.finished {
		p.pos = 0
		p.finished = false
	}
	p.posMu.Unlock()

	if err := p.dev.Start(ctx); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	return nil
}

// Pause holds the current position.
func (p *DevicePlayer) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev == nil {
		return ErrNoClip
	}

	if err := p.dev.Stop(ctx); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	return nil
}

// IsPlaying reports whether audio is coming out. Reaching the end of the
// clip counts as not playing.
func (p *DevicePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev == nil || !p.dev.IsStarted() {
		return false
	}

	p.posMu.Lock()
	defer p.posMu.Unlock()

	return !p.finished
}

// fill runs on the audio thread.
func (p *DevicePlayer) fill(out []byte) {
	p.posMu.Lock()
	defer p.posMu.Unlock()

	n := copy(out, p.data[min(p.pos, len(p.data)):])
	p.pos += n
	clear(out[n:])

	if p.pos >= len(p.data) {
		p.finished = true
	}
}
