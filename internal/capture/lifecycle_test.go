package capture_test

import (
	"bytes"
	"context"
	"image"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alkime/micclip/internal/audio"
	"github.com/alkime/micclip/internal/capture"
	"github.com/alkime/micclip/internal/recorder"
	"github.com/alkime/micclip/internal/waveform"
	"github.com/stretchr/testify/require"
)

// countingOpener tracks how many analysis streams are open on the session.
type countingOpener struct {
	inner waveform.StreamOpener

	mu     sync.Mutex
	opened int
	open   int
}

func (o *countingOpener) OpenStream(ctx context.Context) (waveform.Stream, error) {
	s, err := o.inner.OpenStream(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	o.open++

	return &countedStream{Stream: s, o: o}, nil
}

func (o *countingOpener) counts() (opened, open int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.open
}

type countedStream struct {
	waveform.Stream
	o    *countingOpener
	once sync.Once
}

func (s *countedStream) Close() error {
	s.once.Do(func() {
		s.o.mu.Lock()
		s.o.open--
		s.o.mu.Unlock()
	})
	return s.Stream.Close()
}

type rig struct {
	dev     *fakeDevice
	machine *recorder.Machine
	sampler *waveform.Sampler
	opener  *countingOpener
}

func newRig(t *testing.T, dev *fakeDevice) *rig {
	t.Helper()

	session := newSession(t, dev, &fakeClock{now: time.Unix(0, 0)})
	opener := &countingOpener{inner: session}
	sampler := waveform.NewSampler(opener, waveform.NewRaster(waveform.Width, waveform.Height), waveform.DefaultRenderer())

	m := recorder.NewMachine(session)
	m.OnEnter(recorder.StatusRecording, func(ctx context.Context, _ recorder.Session) error {
		_, err := sampler.Activate(ctx)
		return err
	})
	m.OnExit(recorder.StatusRecording, func(context.Context, recorder.Session) error {
		sampler.Deactivate()
		return nil
	})

	return &rig{dev: dev, machine: m, sampler: sampler, opener: opener}
}

func (r *rig) requireOpen(t *testing.T, want int) {
	t.Helper()
	_, open := r.opener.counts()
	require.Equal(t, want, open)
}

func TestLifecycle_StartTicksStop(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	r := newRig(t, mic())

	require.NoError(t, r.machine.Start(ctx))
	r.requireOpen(t, 1)

	for range 3 {
		r.machine.Tick(recorder.Elapsed{S: 3})
	}

	require.NoError(t, r.machine.Stop(ctx))

	s := r.machine.Session()
	require.Equal(t, recorder.StatusStopped, s.Status)
	require.NotNil(t, s.Clip)
	require.NotEmpty(t, s.Clip.Blob)

	_, active := r.sampler.Active()
	require.False(t, active)
	r.requireOpen(t, 0)
}

func TestLifecycle_PauseResumeOneHandlePerInterval(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	r := newRig(t, mic())

	require.NoError(t, r.machine.Start(ctx))
	r.requireOpen(t, 1)

	require.NoError(t, r.machine.Pause(ctx))
	r.requireOpen(t, 0)

	require.NoError(t, r.machine.Resume(ctx))
	r.requireOpen(t, 1)

	require.NoError(t, r.machine.Stop(ctx))
	r.requireOpen(t, 0)

	opened, _ := r.opener.counts()
	require.Equal(t, 2, opened)
	require.Equal(t, 1, r.dev.deallocs, "device released once, at stop")
}

func TestLifecycle_DeviceUnavailable(t *testing.T) {
	t.Parallel()

	r := newRig(t, &fakeDevice{})

	require.ErrorIs(t, r.machine.Start(t.Context()), recorder.ErrDeviceUnavailable)
	require.Equal(t, recorder.StatusIdle, r.machine.Status())

	opened, _ := r.opener.counts()
	require.Zero(t, opened, "no analysis handle")
}

func TestLifecycle_UnwritableClipDirIsNotADeviceError(t *testing.T) {
	t.Parallel()

	dev := mic()
	session := capture.NewSession(capture.Config{
		SampleRate:   8000,
		Channels:     1,
		TickInterval: 5 * time.Millisecond,
		MaxBytes:     1024,
		Dir:          filepath.Join(t.TempDir(), "missing"),
	}, capture.WithDeviceFactory(func(*audio.DeviceConfig) audio.Device { return dev }))
	t.Cleanup(func() { session.Close(context.Background()) })

	m := recorder.NewMachine(session)

	err := m.Start(t.Context())
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.NotErrorIs(t, err, recorder.ErrDeviceUnavailable)
	require.Equal(t, recorder.StatusIdle, m.Status())
	require.Equal(t, 1, dev.deallocs, "device released")
}

func TestLifecycle_RoundTripRedrawIsStable(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	dev := mic()
	r := newRig(t, dev)

	require.NoError(t, r.machine.Start(ctx))
	require.True(t, dev.emit(0, 9000, -9000, 20000, -20000, 0, 4000))
	require.NoError(t, r.machine.Stop(ctx))

	clip, ok := r.machine.Clip()
	require.True(t, ok)
	require.NotEmpty(t, clip.Blob)
	require.Contains(t, clip.URI, "file://")

	pcm, err := audio.DecodeWAV(clip.Blob)
	require.NoError(t, err)
	peaks := waveform.Peaks(pcm.Samples, pcm.Channels, waveform.BufferLength)

	draw := func() []byte {
		raster := waveform.NewRaster(waveform.Width, waveform.Height)
		waveform.DefaultRenderer().Draw(peaks, raster)
		return bytes.Clone(raster.Image().(*image.RGBA).Pix)
	}

	require.Equal(t, draw(), draw())
}
