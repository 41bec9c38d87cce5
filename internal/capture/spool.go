package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alkime/micclip/internal/audio"
)

// spool reads raw PCM from a channel and buffers it to a scratch file.
// When the input closes it can encode the buffered PCM as a WAV clip.
type spool struct {
	sampleRate int
	channels   int
	input      <-chan audio.DataPacket
	pcmPath    string
	encodeWAV  func(w io.WriteSeeker, sampleRate, channels int, samples []int16) error

	pcmFile      *os.File
	bytesWritten int64
	mu           sync.RWMutex
	wg           sync.WaitGroup
	errOnce      sync.Once
	err          error
}

func newSpool(dir string, sampleRate, channels int, input <-chan audio.DataPacket) (*spool, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	f, err := os.CreateTemp(dir, "micclip-*.pcm")
	if err != nil {
		return nil, fmt.Errorf("failed to create PCM spool: %w", err)
	}

	return &spool{ //nolint:exhaustruct // wg, errOnce, err initialized later
		sampleRate: sampleRate,
		channels:   channels,
		input:      input,
		pcmPath:    f.Name(),
		pcmFile:    f,
		encodeWAV:  audio.EncodeWAV,
	}, nil
}

// start copies input to the spool file until input is closed or ctx ends.
func (s *spool) start(ctx context.Context) {
	s.wg.Go(func() {
		defer func() {
			if err := s.pcmFile.Close(); err != nil {
				s.setError(fmt.Errorf("failed to close PCM file: %w", err))
			}
		}()

		for {
			select {
			case data, ok := <-s.input:
				if !ok {
					return
				}

				n, err := s.pcmFile.Write(data)
				if err != nil {
					s.setError(fmt.Errorf("failed to write PCM data: %w", err))
					return
				}

				s.mu.Lock()
				s.bytesWritten += int64(n)
				s.mu.Unlock()

			case <-ctx.Done():
				return
			}
		}
	})
}

// wait blocks until the spool file is closed and returns the first error.
func (s *spool) wait() error {
	s.wg.Wait()
	return s.err
}

// encode converts the spooled PCM into a WAV file in dir and returns its
// path and contents. The PCM spool is removed either way.
func (s *spool) encode(dir, name string) (string, []byte, error) {
	defer s.cleanup()

	pcmData, err := os.ReadFile(s.pcmPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read PCM file: %w", err)
	}

	samples := audio.BytesToInt16(pcmData)

	slog.Info("encoding clip",
		"pcmPath", s.pcmPath,
		"samples", len(samples),
		"sampleRate", s.sampleRate,
		"channels", s.channels)

	wavFile, err := os.CreateTemp(dir, name)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	blob, err := s.writeWAV(wavFile, samples)
	if err != nil {
		if rmErr := os.Remove(wavFile.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove partial clip", "path", wavFile.Name(), "error", rmErr)
		}
		return "", nil, err
	}

	return wavFile.Name(), blob, nil
}

// writeWAV encodes samples into f, closes it, and reads the result back.
func (s *spool) writeWAV(f *os.File, samples []int16) ([]byte, error) {
	defer f.Close()

	if err := s.encodeWAV(f, s.sampleRate, s.channels, samples); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(f.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV file: %w", err)
	}

	return blob, nil
}

// discard drops a spool that was never started.
func (s *spool) discard() {
	if err := s.pcmFile.Close(); err != nil {
		slog.Warn("failed to close PCM spool", "path", s.pcmPath, "error", err)
	}
	s.cleanup()
}

func (s *spool) cleanup() {
	if err := os.Remove(s.pcmPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove PCM spool", "path", s.pcmPath, "error", err)
	}
}

// BytesWritten returns the number of PCM bytes spooled so far.
func (s *spool) BytesWritten() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytesWritten
}

// setError records the first error that occurs (subsequent calls are no-ops).
func (s *spool) setError(err error) {
	s.errOnce.Do(func() {
		s.err = err
		slog.Error("capture spool error", "error", err)
	})
}
