package audio

import (
	"github.com/gen2brain/malgo"
)

// DeviceConfig describes the PCM format a device is opened with.
// Capture and playback use the same sample format; only the channel
// count that matches the device type is read.
type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int
}

// BytesPerFrame returns the size of one interleaved frame for the
// given channel count. Only 16-bit formats are in use.
func (c DeviceConfig) BytesPerFrame(channels int) int {
	return malgo.SampleSizeInBytes(c.Format) * channels
}
