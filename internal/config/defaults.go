package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "formsync"

// DataDir returns the base formsync data directory.
// FORMSYNC_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("FORMSYNC_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if envPath := os.Getenv("FORMSYNC_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/formsync/
//   - Linux:   ~/.local/share/formsync/
//   - Windows: %APPDATA%\formsync\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, appName)
		}
		return filepath.Join(homeDir(), ".local", "share", appName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", appName)
	default:
		return filepath.Join(homeDir(), "."+appName)
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName)
		}
		return filepath.Join(homeDir(), ".config", appName)
	default:
		return PlatformDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName, "logs")
		}
		return filepath.Join(PlatformDataDir(), "logs")
	default:
		return filepath.Join(PlatformDataDir(), "logs")
	}
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}
