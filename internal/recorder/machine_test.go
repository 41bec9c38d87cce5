package recorder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alkime/micclip/internal/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	stopErr  error
	clip     recorder.Clip
	ticks    chan recorder.Elapsed
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		clip:  recorder.Clip{URI: "file:///tmp/clip.wav", Blob: []byte("RIFF....WAVE")},
		ticks: make(chan recorder.Elapsed, 8),
	}
}

func (f *fakeCapture) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCapture) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCapture) Start(context.Context) error {
	f.record("start")
	return f.startErr
}

func (f *fakeCapture) Pause(context.Context) error {
	f.record("pause")
	return nil
}

func (f *fakeCapture) Resume(context.Context) error {
	f.record("resume")
	return nil
}

func (f *fakeCapture) Stop(context.Context) (recorder.Clip, error) {
	f.record("stop")
	return f.clip, f.stopErr
}

func (f *fakeCapture) Ticks() <-chan recorder.Elapsed {
	return f.ticks
}

// lifecycle counts enter and exit of Recording the way the sampler is wired.
type lifecycle struct {
	mu           sync.Mutex
	open         int
	activations  int
	deactivation int
}

func (l *lifecycle) wire(m *recorder.Machine) {
	m.OnEnter(recorder.StatusRecording, func(context.Context, recorder.Session) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.open == 0 {
			l.open++
			l.activations++
		}
		return nil
	})
	m.OnExit(recorder.StatusRecording, func(context.Context, recorder.Session) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.open == 1 {
			l.open--
			l.deactivation++
		}
		return nil
	})
}

func TestMachine_StartTicksStop(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	capture := newFakeCapture()
	m := recorder.NewMachine(capture)
	lc := &lifecycle{}
	lc.wire(m)

	require.NoError(t, m.Start(ctx))
	require.Equal(t, recorder.StatusRecording, m.Status())
	require.NotEmpty(t, m.Session().ID)

	for range 3 {
		require.True(t, m.Tick(recorder.Elapsed{S: 3}))
	}

	require.NoError(t, m.Stop(ctx))

	s := m.Session()
	require.Equal(t, recorder.StatusStopped, s.Status)
	require.Equal(t, recorder.Elapsed{S: 3}, s.Elapsed)
	require.NotNil(t, s.Clip)
	require.NotEmpty(t, s.Clip.Blob)
	require.Equal(t, "file:///tmp/clip.wav", s.Clip.URI)

	require.Equal(t, 0, lc.open)
	require.Equal(t, 1, lc.activations)
	require.Equal(t, 1, lc.deactivation)
}

func TestMachine_PauseResumeFreezesElapsed(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	capture := newFakeCapture()
	m := recorder.NewMachine(capture)
	lc := &lifecycle{}
	lc.wire(m)

	require.NoError(t, m.Start(ctx))
	m.Tick(recorder.Elapsed{S: 2})

	require.NoError(t, m.Pause(ctx))
	require.Equal(t, 0, lc.open)
	require.False(t, m.Tick(recorder.Elapsed{S: 9}), "ticks while paused are dropped")
	require.Equal(t, recorder.Elapsed{S: 2}, m.Session().Elapsed)

	require.NoError(t, m.Resume(ctx))
	require.Equal(t, 1, lc.open)
	m.Tick(recorder.Elapsed{S: 4})

	require.NoError(t, m.Stop(ctx))
	require.Equal(t, recorder.Elapsed{S: 4}, m.Session().Elapsed)

	require.Equal(t, 2, lc.activations)
	require.Equal(t, 2, lc.deactivation)
	require.Equal(t, []string{"start", "pause", "resume", "stop"}, capture.Calls())
}

func TestMachine_StopWhilePausedRunsPausedExit(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	m := recorder.NewMachine(newFakeCapture())

	var exits []recorder.Status
	for _, st := range []recorder.Status{recorder.StatusRecording, recorder.StatusPaused} {
		m.OnExit(st, func(_ context.Context, s recorder.Session) error {
			exits = append(exits, s.Status)
			return nil
		})
	}

	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Pause(ctx))
	require.NoError(t, m.Stop(ctx))
	require.Equal(t, []recorder.Status{recorder.StatusRecording, recorder.StatusPaused}, exits,
		"recording exits once at pause, paused exits at stop")
	require.Equal(t, recorder.StatusStopped, m.Status())
}

func TestMachine_StartDeviceUnavailable(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture()
	capture.startErr = fmt.Errorf("%w: permission denied", recorder.ErrDeviceUnavailable)
	m := recorder.NewMachine(capture)
	lc := &lifecycle{}
	lc.wire(m)

	err := m.Start(t.Context())
	require.ErrorIs(t, err, recorder.ErrDeviceUnavailable)
	require.ErrorContains(t, err, "permission denied")
	require.Equal(t, recorder.StatusIdle, m.Status())
	require.Equal(t, 0, lc.activations)

	_, ok := m.Clip()
	require.False(t, ok)
}

func TestMachine_StartFailureKeepsCause(t *testing.T) {
	t.Parallel()

	capture := newFakeCapture()
	capture.startErr = errors.New("failed to create PCM spool: no such file or directory")
	m := recorder.NewMachine(capture)

	err := m.Start(t.Context())
	require.ErrorIs(t, err, capture.startErr)
	require.NotErrorIs(t, err, recorder.ErrDeviceUnavailable, "only device failures are device errors")
	require.Equal(t, recorder.StatusIdle, m.Status())
}

func TestMachine_InvalidTransitionsAreNoOps(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	tests := []struct {
		name  string
		setup []func(*recorder.Machine) error
		op    func(*recorder.Machine) error
		want  recorder.Status
	}{
		{
			name: "stop while idle",
			op:   func(m *recorder.Machine) error { return m.Stop(ctx) },
			want: recorder.StatusIdle,
		},
		{
			name: "pause while idle",
			op:   func(m *recorder.Machine) error { return m.Pause(ctx) },
			want: recorder.StatusIdle,
		},
		{
			name: "resume while recording",
			setup: []func(*recorder.Machine) error{
				func(m *recorder.Machine) error { return m.Start(ctx) },
			},
			op:   func(m *recorder.Machine) error { return m.Resume(ctx) },
			want: recorder.StatusRecording,
		},
		{
			name: "start while recording",
			setup: []func(*recorder.Machine) error{
				func(m *recorder.Machine) error { return m.Start(ctx) },
			},
			op:   func(m *recorder.Machine) error { return m.Start(ctx) },
			want: recorder.StatusRecording,
		},
		{
			name: "pause while paused",
			setup: []func(*recorder.Machine) error{
				func(m *recorder.Machine) error { return m.Start(ctx) },
				func(m *recorder.Machine) error { return m.Pause(ctx) },
			},
			op:   func(m *recorder.Machine) error { return m.Pause(ctx) },
			want: recorder.StatusPaused,
		},
		{
			name: "pause while stopped",
			setup: []func(*recorder.Machine) error{
				func(m *recorder.Machine) error { return m.Start(ctx) },
				func(m *recorder.Machine) error { return m.Stop(ctx) },
			},
			op:   func(m *recorder.Machine) error { return m.Pause(ctx) },
			want: recorder.StatusStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			capture := newFakeCapture()
			m := recorder.NewMachine(capture)
			for _, step := range tt.setup {
				require.NoError(t, step(m))
			}

			before := m.Session()
			calls := len(capture.Calls())

			err := tt.op(m)
			require.ErrorIs(t, err, recorder.ErrInvalidTransition)

			var terr *recorder.TransitionError
			require.ErrorAs(t, err, &terr)
			require.Equal(t, tt.want, terr.From)

			require.Equal(t, before, m.Session())
			require.Len(t, capture.Calls(), calls, "capture must not be touched")
		})
	}
}

func TestMachine_RestartClearsPreviousClip(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	capture := newFakeCapture()
	m := recorder.NewMachine(capture)

	exitedStopped := 0
	m.OnExit(recorder.StatusStopped, func(_ context.Context, s recorder.Session) error {
		exitedStopped++
		assert.NotNil(t, s.Clip)
		return nil
	})

	require.NoError(t, m.Start(ctx))
	m.Tick(recorder.Elapsed{M: 1})
	require.NoError(t, m.Stop(ctx))
	first := m.Session().ID

	capture.startErr = fmt.Errorf("%w: unplugged", recorder.ErrDeviceUnavailable)
	require.ErrorIs(t, m.Start(ctx), recorder.ErrDeviceUnavailable)
	require.Equal(t, 1, exitedStopped)

	s := m.Session()
	require.Equal(t, recorder.StatusIdle, s.Status)
	require.Nil(t, s.Clip)
	require.Equal(t, recorder.Elapsed{}, s.Elapsed)

	capture.startErr = nil
	require.NoError(t, m.Start(ctx))
	require.NotEqual(t, first, m.Session().ID)
}

func TestMachine_StopFailureFallsBackToIdle(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	t.Run("capture error", func(t *testing.T) {
		t.Parallel()

		capture := newFakeCapture()
		capture.stopErr = errors.New("disk full")
		m := recorder.NewMachine(capture)

		require.NoError(t, m.Start(ctx))
		require.ErrorContains(t, m.Stop(ctx), "disk full")
		require.Equal(t, recorder.StatusIdle, m.Status())
		_, ok := m.Clip()
		require.False(t, ok)
	})

	t.Run("empty clip", func(t *testing.T) {
		t.Parallel()

		capture := newFakeCapture()
		capture.clip = recorder.Clip{}
		m := recorder.NewMachine(capture)

		require.NoError(t, m.Start(ctx))
		require.ErrorIs(t, m.Stop(ctx), recorder.ErrEmptyClip)
		require.Equal(t, recorder.StatusIdle, m.Status())
	})
}

func TestMachine_EnterActionErrorDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	m := recorder.NewMachine(newFakeCapture())
	m.OnEnter(recorder.StatusRecording, func(context.Context, recorder.Session) error {
		return errors.New("no analyser")
	})

	require.NoError(t, m.Start(t.Context()))
	require.Equal(t, recorder.StatusRecording, m.Status())
}

// Clip is present exactly when stopped, whatever sequence of operations runs.
func TestMachine_ClipIffStopped(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	m := recorder.NewMachine(newFakeCapture())

	ops := []func() error{
		func() error { return m.Start(ctx) },
		func() error { return m.Pause(ctx) },
		func() error { return m.Resume(ctx) },
		func() error { return m.Stop(ctx) },
	}

	// deterministic walk over every op pair
	for i := range 64 {
		_ = ops[i%len(ops)]()
		_ = ops[(i*7+3)%len(ops)]()

		s := m.Session()
		_, ok := m.Clip()
		require.Equal(t, s.Status == recorder.StatusStopped, s.Clip != nil)
		require.Equal(t, s.Clip != nil, ok)
	}
}

func TestElapsed(t *testing.T) {
	t.Parallel()

	e := recorder.ElapsedFrom(3723_900_000_000) // 1h2m3.9s
	require.Equal(t, recorder.Elapsed{H: 1, M: 2, S: 3}, e)
	require.Equal(t, "1:2:3", e.String())
	require.Equal(t, "0:0:0", recorder.Elapsed{}.String())
	require.Equal(t, e, recorder.ElapsedFrom(e.Duration()))
}
