// Package recorder holds the recording lifecycle: the session data and the
// state machine that moves it between Idle, Recording, Paused and Stopped.
package recorder

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a recording session.
type Status int

const (
	// StatusIdle means nothing is being captured and no clip exists.
	StatusIdle Status = iota
	// StatusRecording means the microphone is live and elapsed time accrues.
	StatusRecording
	// StatusPaused means capture is suspended; the device stays allocated.
	StatusPaused
	// StatusStopped means capture is finalized and a clip is available.
	StatusStopped
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRecording:
		return "Recording"
	case StatusPaused:
		return "Paused"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Elapsed is recorded time broken into hours, minutes and seconds.
type Elapsed struct {
	H, M, S int
}

// ElapsedFrom truncates d to whole seconds.
func ElapsedFrom(d time.Duration) Elapsed {
	total := int(d / time.Second)

	return Elapsed{
		H: total / 3600,
		M: total % 3600 / 60,
		S: total % 60,
	}
}

// Duration converts back to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.H)*time.Hour + time.Duration(e.M)*time.Minute + time.Duration(e.S)*time.Second
}

func (e Elapsed) String() string {
	return fmt.Sprintf("%d:%d:%d", e.H, e.M, e.S)
}

// Clip is a finalized recording: a playable reference and the encoded bytes.
type Clip struct {
	URI  string
	Blob []byte
}

// Empty reports whether the clip carries no audio payload.
func (c Clip) Empty() bool {
	return len(c.Blob) == 0
}

// Session is a snapshot of the recording lifecycle.
// Clip is non-nil if and only if Status is StatusStopped.
type Session struct {
	ID      string
	Status  Status
	Elapsed Elapsed
	Clip    *Clip
}

// CaptureSession is the microphone engine driven by the Machine.
type CaptureSession interface {
	// Start acquires the microphone and begins capturing.
	Start(ctx context.Context) error
	// Pause suspends capture and elapsed time accrual.
	Pause(ctx context.Context) error
	// Resume continues a paused capture.
	Resume(ctx context.Context) error
	// Stop finalizes the capture into a Clip and releases the device.
	Stop(ctx context.Context) (Clip, error)
	// Ticks emits elapsed time while capturing.
	Ticks() <-chan Elapsed
}

// Action runs on entry to or exit from a status.
type Action func(ctx context.Context, s Session) error
