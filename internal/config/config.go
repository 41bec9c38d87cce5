package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment turns on debug logging.
	EnvDevelopment = "development"
)

// Config holds all application configuration.
type Config struct {
	Env string `envconfig:"ENV" default:"development"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// LogFile is where the TUI logs go since it owns the terminal.
	// Empty means micclip.log in the OS temp dir.
	LogFile string `envconfig:"LOG_FILE"`

	// Upload settings
	UploadURL     string        `envconfig:"UPLOAD_URL" default:"http://localhost:5000/upload"`
	UploadTimeout time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"30s"`

	// Audio settings
	SampleRate int `envconfig:"SAMPLE_RATE" default:"44100"`
	Channels   int `envconfig:"CHANNELS" default:"1"`

	// UI settings
	FrameInterval time.Duration `envconfig:"FRAME_INTERVAL" default:"33ms"`
	TickInterval  time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	MaxBytes      int64         `envconfig:"MAX_BYTES" default:"67108864"`

	// ClipDir holds the spool and the current clip. Empty means the
	// default under the user's Documents folder.
	ClipDir string `envconfig:"CLIP_DIR"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LogPath resolves the log file location.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}

	return filepath.Join(os.TempDir(), "micclip.log")
}

func (c *Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	case c.Channels < 1 || c.Channels > 2:
		return fmt.Errorf("CHANNELS must be 1 or 2, got %d", c.Channels)
	case c.FrameInterval <= 0:
		return fmt.Errorf("FRAME_INTERVAL must be positive, got %s", c.FrameInterval)
	case c.TickInterval <= 0:
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}

	return nil
}
