package waveform

import (
	"image/color"
	"math"
	"sync"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/canvas/graph"
	"github.com/alkime/micclip/internal/waveform"
)

// Canvas is a waveform.Surface drawn with braille dots. Each terminal cell
// holds a 2x4 dot grid. Drawing goes to a back grid and becomes visible on
// Stroke, so a reader never sees a half drawn frame.
type Canvas struct {
	cols, rows int
	w, h       float64

	mu    sync.RWMutex
	back  *graph.BrailleGrid
	front [][]rune
	path  [][]canvas.Point
}

// NewCanvas returns a cols x rows cell canvas with the standard logical size.
func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(1, cols), max(1, rows)

	c := &Canvas{
		cols: cols,
		rows: rows,
		w:    waveform.Width,
		h:    waveform.Height,
		back: graph.NewBrailleGrid(cols, rows, 0, waveform.Width, 0, waveform.Height),
	}
	c.front = c.back.BraillePatterns()

	return c
}

func (c *Canvas) Size() (float64, float64) {
	return c.w, c.h
}

// Clear empties the back grid. Terminal colors come from the style, not bg.
func (c *Canvas) Clear(_ color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.back.Clear()
	c.path = nil
}

func (c *Canvas) MoveTo(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.path = append(c.path, []canvas.Point{c.toDots(x, y)})
}

func (c *Canvas) LineTo(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.toDots(x, y)
	if len(c.path) == 0 {
		c.path = append(c.path, []canvas.Point{p})
		return
	}

	last := len(c.path) - 1
	c.path[last] = append(c.path[last], p)
}

// Stroke plots the path and publishes the back grid. Line width is one dot.
func (c *Canvas) Stroke(_ color.Color, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.path {
		if len(sub) == 1 {
			c.back.Set(sub[0])
		}
		for i := 1; i < len(sub); i++ {
			for _, p := range graph.GetLinePoints(sub[i-1], sub[i]) {
				c.back.Set(p)
			}
		}
	}

	c.path = nil
	c.front = c.back.BraillePatterns()
}

// Lines returns the published frame, one string per cell row.
func (c *Canvas) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := make([]string, len(c.front))
	for i, row := range c.front {
		lines[i] = string(row)
	}

	return lines
}

// toDots maps logical coordinates onto the dot grid, y growing downwards.
func (c *Canvas) toDots(x, y float64) canvas.Point {
	dw, dh := float64(c.cols*2), float64(c.rows*4)

	return canvas.Point{
		X: int(math.Max(0, math.Min(dw-1, x/c.w*dw))),
		Y: int(math.Max(0, math.Min(dh-1, y/c.h*dh))),
	}
}
