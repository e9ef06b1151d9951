// Package platform resolves the per-user directories meetingagent keeps its
// configuration, cache and history in.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "meetingagent"

func DataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appName), nil
		}
		return filepath.Join(homeDir, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

// ConfigFileFor follows the XDG layout on every OS, the same place users of
// other terminal tools expect to find config.toml.
func ConfigFileFor(homeDir, xdgConfigHome string) (string, error) {
	if xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName, "config.toml"), nil
	}
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(homeDir, ".config", appName, "config.toml"), nil
}

func ResolveDataDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return DataDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"))
}

func ResolveConfigFile(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	homeDir, _ := os.UserHomeDir()
	return ConfigFileFor(homeDir, os.Getenv("XDG_CONFIG_HOME"))
}
