package waveform

import (
	"fmt"
	"math"

	"github.com/alkime/micclip/internal/audio"
)

// StaticView draws the overview of a finished clip.
type StaticView struct {
	surface  Surface
	renderer Renderer
	points   int
}

// NewStaticView returns a view that plots BufferLength peaks per clip.
func NewStaticView(surface Surface, renderer Renderer) *StaticView {
	return &StaticView{
		surface:  surface,
		renderer: renderer,
		points:   BufferLength,
	}
}

// Show decodes a WAV blob and draws its peak envelope.
func (v *StaticView) Show(blob []byte) error {
	pcm, err := audio.DecodeWAV(blob)
	if err != nil {
		return fmt.Errorf("failed to show clip: %w", err)
	}

	v.renderer.Draw(Peaks(pcm.Samples, pcm.Channels, v.points), v.surface)

	return nil
}

// Clear resets the surface to an empty center line.
func (v *StaticView) Clear() {
	v.renderer.Draw(nil, v.surface)
}

// Peaks reduces interleaved samples to n buckets. Each bucket holds the
// sample with the largest magnitude in its frame range, sign kept, scaled to
// [-1, 1). Clips shorter than n frames yield one bucket per frame.
func Peaks(samples []int16, channels, n int) []float64 {
	channels = max(1, channels)
	frames := len(samples) / channels
	if frames == 0 || n <= 0 {
		return nil
	}

	n = min(n, frames)
	peaks := make([]float64, n)

	for b := range n {
		lo := b * frames / n * channels
		hi := (b + 1) * frames / n * channels

		var peak int16
		for _, s := range samples[lo:hi] {
			if math.Abs(float64(s)) > math.Abs(float64(peak)) {
				peak = s
			}
		}
		peaks[b] = float64(peak) / 32768
	}

	return peaks
}
