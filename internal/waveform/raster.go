package waveform

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

// Raster is a pixel Surface backed by an RGBA image.
type Raster struct {
	dc *gg.Context
}

// NewRaster allocates a w x h pixel surface.
func NewRaster(w, h int) *Raster {
	return &Raster{dc: gg.NewContext(w, h)}
}

func (r *Raster) Size() (float64, float64) {
	return float64(r.dc.Width()), float64(r.dc.Height())
}

func (r *Raster) Clear(bg color.Color) {
	r.dc.ClearPath()
	r.dc.SetColor(bg)
	r.dc.Clear()
}

func (r *Raster) MoveTo(x, y float64) {
	r.dc.MoveTo(x, y)
}

func (r *Raster) LineTo(x, y float64) {
	r.dc.LineTo(x, y)
}

func (r *Raster) Stroke(fg color.Color, width float64) {
	r.dc.SetColor(fg)
	r.dc.SetLineWidth(width)
	r.dc.Stroke()
}

// Image returns the backing image. It is not a copy.
func (r *Raster) Image() image.Image {
	return r.dc.Image()
}

// EncodePNG writes the surface as a PNG image.
func (r *Raster) EncodePNG(w io.Writer) error {
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}

	return nil
}

// SavePNG writes the surface to path as a PNG image.
func (r *Raster) SavePNG(path string) error {
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save png %s: %w", path, err)
	}

	return nil
}
