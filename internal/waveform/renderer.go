// Package waveform samples live audio and draws it as a line plot.
package waveform

import (
	"image/color"
)

const (
	// FFTSize is the analysis window in samples.
	FFTSize = 2048
	// BufferLength is the number of time domain samples drawn per frame.
	BufferLength = FFTSize / 2

	// Width and Height are the logical surface dimensions.
	Width  = 500
	Height = 100
)

// Surface is a 2-D drawing target with a single open path.
type Surface interface {
	// Size returns the logical width and height.
	Size() (w, h float64)
	// Clear fills the whole surface and discards any open path.
	Clear(bg color.Color)
	MoveTo(x, y float64)
	LineTo(x, y float64)
	// Stroke draws the open path and discards it.
	Stroke(fg color.Color, width float64)
}

// Renderer draws a sample buffer onto a Surface. It keeps no state between
// calls; the same buffer always produces the same drawing.
type Renderer struct {
	Background color.Color
	Foreground color.Color
	LineWidth  float64
}

// DefaultRenderer draws a black line two units wide on light grey.
func DefaultRenderer() Renderer {
	return Renderer{
		Background: color.RGBA{R: 200, G: 200, B: 200, A: 255},
		Foreground: color.Black,
		LineWidth:  2,
	}
}

// Draw clears s and plots samples left to right. Samples are amplitudes in
// [-1, 1]; 0 sits on the vertical center and 1 deflects a full half height.
// The path always ends at the center of the right edge.
func (r Renderer) Draw(samples []float64, s Surface) {
	w, h := s.Size()

	s.Clear(r.Background)

	if len(samples) == 0 {
		s.MoveTo(0, h/2)
	}

	step := 0.0
	if len(samples) > 0 {
		step = w / float64(len(samples))
	}

	x := 0.0
	for i, v := range samples {
		y := (1 + clamp(v)) * h / 2
		if i == 0 {
			s.MoveTo(x, y)
		} else {
			s.LineTo(x, y)
		}
		x += step
	}

	s.LineTo(w, h/2)
	s.Stroke(r.Foreground, r.LineWidth)
}

func clamp(v float64) float64 {
	return max(-1, min(1, v))
}
