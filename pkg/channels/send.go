package channels

// SendNonBlock attempts to send a message without blocking.
// Returns ErrChannelFull if nobody is ready and ErrChannelClosed if the
// channel was closed.
func SendNonBlock[T any](ch chan<- T, msg T) (err error) {
	defer closedAsErr(&err)

	select {
	case ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}
