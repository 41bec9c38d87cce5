package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/micclip/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:5000/upload", cfg.UploadURL)
	require.Equal(t, 44100, cfg.SampleRate)
	require.Equal(t, 1, cfg.Channels)
	require.Equal(t, 33*time.Millisecond, cfg.FrameInterval)
	require.Equal(t, time.Second, cfg.TickInterval)
	require.Equal(t, int64(64<<20), cfg.MaxBytes)
	require.Equal(t, "micclip.log", filepath.Base(cfg.LogPath()))
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPLOAD_URL", "http://example.test/clips")
	t.Setenv("CHANNELS", "2")
	t.Setenv("LOG_FILE", "/var/log/micclip.json")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://example.test/clips", cfg.UploadURL)
	require.Equal(t, 2, cfg.Channels)
	require.Equal(t, "/var/log/micclip.json", cfg.LogPath())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHANNELS", "6")

	_, err := config.LoadConfig()
	require.ErrorContains(t, err, "CHANNELS")
}
