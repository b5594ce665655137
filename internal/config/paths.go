package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hamichlol/wikiup/internal/constants"
)

// DefaultSettingsPath returns the default settings file location.
// WIKIUP_CONFIG wins when set.
//   - Windows: %USERPROFILE%\.config\wikiup\settings.ini
//   - Unix: ~/.config/wikiup/settings.ini
func DefaultSettingsPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}

	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", constants.AppName)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", constants.AppName)
	}

	return filepath.Join(configDir, "settings.ini"), nil
}

// ResolvePath returns path if non-empty, otherwise the default settings path.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultSettingsPath()
}
