package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName    = "config.toml"
	projectConfigName = ".bubble.toml"
)

// GetConfigPath resolves the bubble configuration directory and global file
// path: $BUBBLE_HOME, then $XDG_CONFIG_HOME/bubble, then ~/.config/bubble.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv("BUBBLE_HOME")); override != "" {
		dir := filepath.Clean(override)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", "", fmt.Errorf("resolve BUBBLE_HOME %q: %w", override, err)
			}
			dir = abs
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := resolveHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "bubble")
	return dir, filepath.Join(dir, configFileName), nil
}

// ProjectConfigPath returns the per-project config file inside dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, projectConfigName)
}
