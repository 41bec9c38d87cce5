package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alkime/micclip/internal/recorder"
)

// Controller is the play/pause toggle over the finished clip.
type Controller struct {
	player Player

	mu     sync.Mutex
	loaded bool
}

// NewController wraps player.
func NewController(player Player) *Controller {
	return &Controller{player: player}
}

// Load hands clip to the player.
func (c *Controller) Load(ctx context.Context, clip recorder.Clip) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.player.Load(ctx, clip); err != nil {
		c.loaded = false
		return err
	}

	c.loaded = true

	return nil
}

// Unload stops and forgets the clip.
func (c *Controller) Unload(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.player.Unload(ctx)
	c.loaded = false
}

// Loaded reports whether a clip is ready to play.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loaded
}

// Read reports whether the clip is playing.
func (c *Controller) Read() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loaded && c.player.IsPlaying()
}

// Toggle plays when not playing and pauses otherwise.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		slog.Debug("playback toggle ignored, no clip loaded")
		return
	}

	ctx := context.Background()

	var err error
	if c.player.IsPlaying() {
		err = c.player.Pause(ctx)
	} else {
		err = c.player.Play(ctx)
	}

	if err != nil {
		slog.Error("playback toggle failed", "error", err)
	}
}

func (c *Controller) On() {
	if !c.Read() {
		c.Toggle()
	}
}

func (c *Controller) Off() {
	if c.Read() {
		c.Toggle()
	}
}
