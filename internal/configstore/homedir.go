package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveHomeDir reads HOME (or its Windows equivalents) on every call so
// tests that change the environment see the new value.
func resolveHomeDir() (string, error) {
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		home = strings.TrimSpace(os.Getenv("USERPROFILE"))
	}
	if home != "" {
		return filepath.Clean(home), nil
	}

	resolved, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(resolved) == "" {
		if err == nil {
			err = fmt.Errorf("home directory not found")
		}
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Clean(resolved), nil
}

// HomeDir exposes the resolved home directory to other packages.
func HomeDir() (string, error) {
	return resolveHomeDir()
}
