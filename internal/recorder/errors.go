package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when no microphone can be acquired.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrInvalidTransition is returned when an operation is not valid from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrEmptyClip is returned when the capture finalized without any audio.
	ErrEmptyClip = errors.New("capture produced an empty clip")
)

// TransitionError describes an operation attempted from the wrong status.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
