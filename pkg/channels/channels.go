// Package channels holds small generic helpers for fanning out on channels
// that may be full or already closed.
package channels

import (
	"errors"
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrChannelFull   = errors.New("channel full")
)

// closedAsErr turns the panic from sending on a closed channel into
// ErrChannelClosed.
func closedAsErr(err *error) {
	if r := recover(); r != nil {
		*err = ErrChannelClosed
	}
}
