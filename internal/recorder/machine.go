package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Machine owns the recording lifecycle. It is the only writer of Session.
//
// Transitions are serialized: a transition in flight (for example a slow
// device acquisition) blocks the next one. Reads through Session and Clip
// never block on a transition.
type Machine struct {
	capture CaptureSession

	opMu sync.Mutex

	mu      sync.RWMutex
	session Session

	actionsMu sync.RWMutex
	enter     map[Status][]Action
	exit      map[Status][]Action
}

// NewMachine returns a Machine at StatusIdle.
func NewMachine(capture CaptureSession) *Machine {
	return &Machine{
		capture: capture,
		session: Session{Status: StatusIdle},
		enter:   make(map[Status][]Action),
		exit:    make(map[Status][]Action),
	}
}

// OnEnter registers an action to run after the machine enters status.
// Errors from enter actions are logged and do not fail the transition.
func (m *Machine) OnEnter(status Status, action Action) {
	m.actionsMu.Lock()
	defer m.actionsMu.Unlock()

	m.enter[status] = append(m.enter[status], action)
}

// OnExit registers an action to run before the machine leaves status.
// Exit actions must be idempotent.
func (m *Machine) OnExit(status Status, action Action) {
	m.actionsMu.Lock()
	defer m.actionsMu.Unlock()

	m.exit[status] = append(m.exit[status], action)
}

// Session returns a snapshot of the current session.
func (m *Machine) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.session
	if s.Clip != nil {
		c := *s.Clip
		s.Clip = &c
	}

	return s
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session.Status
}

// Clip returns the finalized clip, if any.
func (m *Machine) Clip() (Clip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session.Clip == nil {
		return Clip{}, false
	}

	return *m.session.Clip, true
}

// Start begins a new recording from Idle or Stopped, discarding any previous clip.
func (m *Machine) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	from := m.Status()
	if from != StatusIdle && from != StatusStopped {
		return m.invalid("start", from)
	}

	if from == StatusStopped {
		m.runActions(ctx, m.exitActions(StatusStopped), "exit", StatusStopped)
	}

	m.update(func(s *Session) {
		*s = Session{Status: StatusIdle}
	})

	// device failures arrive already wrapped in ErrDeviceUnavailable
	if err := m.capture.Start(ctx); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	id := uuid.NewString()
	m.update(func(s *Session) {
		s.ID = id
		s.Status = StatusRecording
	})
	slog.Info("recording started", "id", id)

	m.runActions(ctx, m.enterActions(StatusRecording), "enter", StatusRecording)

	return nil
}

// Stop finalizes the recording from Recording or Paused.
// If the capture cannot be finalized the session falls back to Idle.
func (m *Machine) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	from := m.Status()
	if from != StatusRecording && from != StatusPaused {
		return m.invalid("stop", from)
	}

	m.runActions(ctx, m.exitActions(from), "exit", from)

	clip, err := m.capture.Stop(ctx)
	if err == nil && clip.Empty() {
		err = ErrEmptyClip
	}

	if err != nil {
		m.update(func(s *Session) {
			s.Status = StatusIdle
			s.Clip = nil
		})

		return fmt.Errorf("failed to stop recording: %w", err)
	}

	m.update(func(s *Session) {
		s.Status = StatusStopped
		s.Clip = &clip
	})
	slog.Info("recording stopped", "id", m.Session().ID, "bytes", len(clip.Blob), "uri", clip.URI)

	m.runActions(ctx, m.enterActions(StatusStopped), "enter", StatusStopped)

	return nil
}

// Pause suspends a running recording.
func (m *Machine) Pause(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	from := m.Status()
	if from != StatusRecording {
		return m.invalid("pause", from)
	}

	if err := m.capture.Pause(ctx); err != nil {
		return fmt.Errorf("failed to pause recording: %w", err)
	}

	m.runActions(ctx, m.exitActions(StatusRecording), "exit", StatusRecording)

	m.update(func(s *Session) {
		s.Status = StatusPaused
	})

	m.runActions(ctx, m.enterActions(StatusPaused), "enter", StatusPaused)

	return nil
}

// Resume continues a paused recording.
func (m *Machine) Resume(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	from := m.Status()
	if from != StatusPaused {
		return m.invalid("resume", from)
	}

	if err := m.capture.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume recording: %w", err)
	}

	m.runActions(ctx, m.exitActions(StatusPaused), "exit", StatusPaused)

	m.update(func(s *Session) {
		s.Status = StatusRecording
	})

	m.runActions(ctx, m.enterActions(StatusRecording), "enter", StatusRecording)

	return nil
}

// Tick records elapsed time reported by the capture session.
// Ticks are ignored unless recording, so elapsed time is frozen while paused.
func (m *Machine) Tick(e Elapsed) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != StatusRecording {
		return false
	}

	m.session.Elapsed = e

	return true
}

// Ticks exposes the capture session's elapsed time feed.
func (m *Machine) Ticks() <-chan Elapsed {
	return m.capture.Ticks()
}

func (m *Machine) invalid(op string, from Status) error {
	err := &TransitionError{Op: op, From: from}
	slog.Debug("ignoring transition", "error", err)

	return err
}

func (m *Machine) update(fn func(s *Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.session)
}

func (m *Machine) enterActions(status Status) []Action {
	m.actionsMu.RLock()
	defer m.actionsMu.RUnlock()

	return append([]Action(nil), m.enter[status]...)
}

func (m *Machine) exitActions(status Status) []Action {
	m.actionsMu.RLock()
	defer m.actionsMu.RUnlock()

	return append([]Action(nil), m.exit[status]...)
}

func (m *Machine) runActions(ctx context.Context, actions []Action, kind string, status Status) {
	snapshot := m.Session()
	for _, action := range actions {
		if err := action(ctx, snapshot); err != nil {
			slog.Error("state action failed", "kind", kind, "status", status, "error", err)
		}
	}
}
