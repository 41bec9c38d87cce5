package channels

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type subscriber[T any] struct {
	ch       chan<- T
	inactive atomic.Bool
	dropped  atomic.Int32
}

func (s *subscriber[T]) send(msg T) {
	if s.inactive.Load() {
		s.dropped.Add(1)
		return
	}

	if err := SendNonBlock(s.ch, msg); err != nil {
		// a closed channel never recovers, a full one might
		s.dropped.Add(1)
		if errors.Is(err, ErrChannelClosed) {
			s.inactive.Store(true)
		}
	}
}

// Broadcaster broadcasts messages from a single input channel to multiple subscriber channels.
// It owns the input channel and handles graceful shutdown via context cancellation.
//
// Subscribers may join and leave while the broadcaster is running. Once the
// unsubscribe func returned by Subscribe has returned, no further sends are
// made to that channel and the caller may close it.
//
// Sends never block: a message is dropped for a subscriber whose channel is full.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber[T]
	nextID      int
	input       chan T
	started     atomic.Bool
	wg          sync.WaitGroup
}

// NewBroadcaster creates a new Broadcaster instance for the given type T.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[int]*subscriber[T]),
	}
}

// Subscribe adds a channel to receive broadcasted messages.
// The returned unsubscribe func reports how many messages the channel missed.
func (f *Broadcaster[T]) Subscribe(ch chan<- T) (func() int, error) {
	if ch == nil {
		return nil, errors.New("subscriber channel cannot be nil")
	}

	sub := &subscriber[T]{ch: ch}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subscribers[id] = sub

	var once sync.Once

	return func() int {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, id)
			f.mu.Unlock()
		})

		return int(sub.dropped.Load())
	}, nil
}

// Run starts the broadcaster and returns the input channel for sending messages.
//
// The returned channel is owned by Broadcaster and will be closed on context cancellation.
// After closure, all remaining messages are drained to subscribers.
func (f *Broadcaster[T]) Run(ctx context.Context) (chan<- T, error) {
	if !f.started.CompareAndSwap(false, true) {
		return nil, errors.New("broadcaster already started")
	}

	f.input = make(chan T, 64)

	f.wg.Go(func() {
		for msg := range f.input {
			f.mu.RLock()
			for _, sub := range f.subscribers {
				sub.send(msg)
			}
			f.mu.RUnlock()
		}
	})

	// Shutdown handler: close input and wait for drain to complete
	go func() {
		<-ctx.Done()
		close(f.input)
		f.wg.Wait()
	}()

	return f.input, nil
}

// Wait blocks until the broadcast goroutine has drained the input channel.
// Multiple goroutines can safely call Wait().
func (f *Broadcaster[T]) Wait() {
	f.wg.Wait()
}

// Len returns the number of current subscribers.
func (f *Broadcaster[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.subscribers)
}
