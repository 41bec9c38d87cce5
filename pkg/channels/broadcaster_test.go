package channels_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/micclip/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	t.Run("error cases", func(t *testing.T) {
		t.Run("subscribe with nil channel", func(t *testing.T) {
			b := channels.NewBroadcaster[int]()
			_, err := b.Subscribe(nil)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "cannot be nil")
		})

		t.Run("run twice", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			b := channels.NewBroadcaster[int]()
			_, err := b.Run(ctx)
			require.NoError(t, err)

			_, err = b.Run(ctx)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "already started")
		})
	})

	t.Run("multiple subscribers receive same messages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := channels.NewBroadcaster[int]()
		sub1 := make(chan int, 10)
		sub2 := make(chan int, 10)
		_, err := b.Subscribe(sub1)
		require.NoError(t, err)
		_, err = b.Subscribe(sub2)
		require.NoError(t, err)

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		input <- 2
		input <- 3

		cancel()
		b.Wait()
		close(sub1)
		close(sub2)

		assert.Equal(t, []int{1, 2, 3}, channels.ReceiveAll(sub1, 10*time.Millisecond, 0))
		assert.Equal(t, []int{1, 2, 3}, channels.ReceiveAll(sub2, 10*time.Millisecond, 0))
	})

	t.Run("subscriber joins while running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := channels.NewBroadcaster[int]()
		input, err := b.Run(ctx)
		require.NoError(t, err)

		// nobody listening yet: dropped on the floor
		input <- 1

		require.Eventually(t, func() bool { return len(input) == 0 }, time.Second, time.Millisecond)

		sub := make(chan int, 10)
		_, err = b.Subscribe(sub)
		require.NoError(t, err)

		input <- 2

		got := channels.ReceiveAll(sub, 50*time.Millisecond, 1)
		assert.Equal(t, []int{2}, got)
	})

	t.Run("unsubscribe stops delivery and allows close", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := channels.NewBroadcaster[int]()
		sub := make(chan int, 10)
		unsubscribe, err := b.Subscribe(sub)
		require.NoError(t, err)
		require.Equal(t, 1, b.Len())

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		require.Equal(t, []int{1}, channels.ReceiveAll(sub, 50*time.Millisecond, 1))

		assert.Zero(t, unsubscribe())
		assert.Zero(t, unsubscribe(), "second call is a no-op")
		close(sub)
		assert.Equal(t, 0, b.Len())

		// must not panic on the closed subscriber
		input <- 2
		cancel()
		b.Wait()
	})

	t.Run("subscriber drops when full", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := channels.NewBroadcaster[int]()
		sub := make(chan int, 1)
		unsubscribe, err := b.Subscribe(sub)
		require.NoError(t, err)

		input, err := b.Run(ctx)
		require.NoError(t, err)

		input <- 1
		input <- 2

		cancel()
		b.Wait()
		assert.Equal(t, 1, unsubscribe(), "second message missed")
		close(sub)

		received := channels.ReceiveAll(sub, 10*time.Millisecond, 0)
		assert.Equal(t, []int{1}, received)
	})
}
