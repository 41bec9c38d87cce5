package waveform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alkime/micclip/internal/audio"
)

// Stream is a live feed of interleaved S16LE packets.
type Stream interface {
	Packets() <-chan audio.DataPacket
	Channels() int
	// Close detaches the stream. Packets is closed once Close returns.
	Close() error
}

// StreamOpener opens a new Stream on the live microphone feed.
type StreamOpener interface {
	OpenStream(ctx context.Context) (Stream, error)
}

// Analyser keeps the most recent window of a stream, downmixed to mono.
type Analyser struct {
	buf      *audio.SampleRingBuffer
	channels int

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewAnalyser starts consuming stream into a window of size samples.
func NewAnalyser(stream Stream, size int) *Analyser {
	a := &Analyser{
		buf:      audio.NewSampleRingBuffer(size),
		channels: max(1, stream.Channels()),
		done:     make(chan struct{}),
	}

	a.wg.Go(func() {
		a.consume(stream.Packets())
	})

	return a
}

func (a *Analyser) consume(packets <-chan audio.DataPacket) {
	for {
		select {
		case <-a.done:
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			a.buf.Write(downmix(audio.BytesToInt16(pkt), a.channels))
		}
	}
}

// TimeDomain fills dst with the newest samples in [-1, 1).
func (a *Analyser) TimeDomain(dst []float64) int {
	return a.buf.Snapshot(dst)
}

// Close stops consumption. Safe to call more than once.
func (a *Analyser) Close() {
	a.once.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

func downmix(samples []int16, channels int) []int16 {
	if channels == 1 {
		return samples
	}

	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for c := range channels {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}

	return out
}

// AnalysisHandle ties a stream to its analyser and the frame buffer read
// from it. It is closed exactly once; later calls are no-ops.
type AnalysisHandle struct {
	stream   Stream
	analyser *Analyser
	buffer   []float64

	once sync.Once
	err  error
}

// OpenAnalysis opens a stream and attaches an FFTSize analyser to it.
func OpenAnalysis(ctx context.Context, opener StreamOpener) (*AnalysisHandle, error) {
	if opener == nil {
		return nil, errors.New("stream opener is nil")
	}

	stream, err := opener.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis stream: %w", err)
	}

	return &AnalysisHandle{
		stream:   stream,
		analyser: NewAnalyser(stream, FFTSize),
		buffer:   make([]float64, BufferLength),
	}, nil
}

// Read refreshes and returns the frame buffer. The slice is reused.
func (h *AnalysisHandle) Read() []float64 {
	h.analyser.TimeDomain(h.buffer)
	return h.buffer
}

// Close releases the analyser, then the stream.
func (h *AnalysisHandle) Close() error {
	h.once.Do(func() {
		h.analyser.Close()
		if err := h.stream.Close(); err != nil {
			h.err = fmt.Errorf("failed to close analysis stream: %w", err)
		}
	})

	return h.err
}
