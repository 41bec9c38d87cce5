// Package workdir resolves where micclip keeps finished clips.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root returns the base directory for micclip files:
//
//	$HOME/Documents/Alkime/Micclip
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "Alkime", "Micclip"), nil
}

// ClipDir returns override when set, otherwise the clips folder under Root.
func ClipDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "clips"), nil
}

// Prep ensures dir exists.
func Prep(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create clip directory %s: %w", dir, err)
	}

	return nil
}
