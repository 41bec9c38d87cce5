package audio

import (
	"encoding/binary"
	"sync"
)

// SampleRingBuffer is a thread-safe circular buffer for audio samples.
// It keeps the most recent window of int16 samples for time domain analysis
// and allows concurrent snapshots while writing.
type SampleRingBuffer struct {
	samples []int16
	head    int // Next write position
	count   int // Number of valid samples (up to capacity)
	mu      sync.RWMutex
}

// NewSampleRingBuffer creates a ring buffer with the given capacity.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{
		samples: make([]int16, capacity),
		head:    0,
		count:   0,
		mu:      sync.RWMutex{},
	}
}

// Write appends samples to the buffer, overwriting oldest if full.
// This method is safe to call from a single writer goroutine.
func (b *SampleRingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)

	for _, sample := range samples {
		b.samples[b.head] = sample
		b.head = (b.head + 1) % capacity

		if b.count < capacity {
			b.count++
		}
	}
}

// Snapshot fills dst with the len(dst) most recent samples scaled to [-1, 1).
// When fewer samples are buffered the front of dst is zero filled, so the
// newest sample always lands in the last slot. Returns the number of real
// samples copied.
func (b *SampleRingBuffer) Snapshot(dst []float64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := min(len(dst), b.count)
	pad := len(dst) - n

	for i := range pad {
		dst[i] = 0
	}

	capacity := len(b.samples)
	start := (b.head - n + capacity) % capacity

	for i := range n {
		dst[pad+i] = float64(b.samples[(start+i)%capacity]) / 32768
	}

	return n
}

// Count returns the number of valid samples in the buffer.
func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// BytesToInt16 converts S16LE (signed 16-bit little-endian) bytes to int16 samples.
func BytesToInt16(data []byte) []int16 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return nil
	}

	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}
