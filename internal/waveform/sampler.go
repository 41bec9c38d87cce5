package waveform

import (
	"context"
	"log/slog"
	"sync"
)

// Sampler draws the live stream while active.
//
// Each activation gets a new generation number. Frame callbacks carry the
// generation they were scheduled for, so a callback that arrives after
// Deactivate (or after a later Activate) draws nothing.
type Sampler struct {
	opener   StreamOpener
	surface  Surface
	renderer Renderer

	mu     sync.Mutex
	handle *AnalysisHandle
	gen    uint64
	active bool
}

// NewSampler returns an inactive Sampler drawing onto surface.
func NewSampler(opener StreamOpener, surface Surface, renderer Renderer) *Sampler {
	return &Sampler{
		opener:   opener,
		surface:  surface,
		renderer: renderer,
	}
}

// Activate opens an analysis handle and returns the new generation.
// Calling it while already active returns the current generation.
func (s *Sampler) Activate(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return s.gen, nil
	}

	h, err := OpenAnalysis(ctx, s.opener)
	if err != nil {
		return 0, err
	}

	s.handle = h
	s.gen++
	s.active = true
	slog.Debug("waveform sampler activated", "gen", s.gen)

	return s.gen, nil
}

// Deactivate closes the analysis handle. Safe to call in any state.
func (s *Sampler) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	s.active = false
	h := s.handle
	s.handle = nil

	if err := h.Close(); err != nil {
		slog.Warn("failed to close analysis handle", "gen", s.gen, "error", err)
	}
	slog.Debug("waveform sampler deactivated", "gen", s.gen)
}

// Frame draws one frame for gen. It returns false, without drawing, when gen
// is not the active generation; the caller must then stop scheduling frames.
func (s *Sampler) Frame(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || gen != s.gen {
		return false
	}

	s.renderer.Draw(s.handle.Read(), s.surface)

	return true
}

// Active returns the current generation and whether the sampler is active.
func (s *Sampler) Active() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen, s.active
}
