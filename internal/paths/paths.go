// Package paths resolves configuration, data, and sync folder locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Fixed names of per-machine artifacts inside the data directory.
const (
	LocalDBName = "history.db"
	MarkerName  = "sync_import_index.json"
	SyncDirName = "sync"
	LogName     = "histsync.log"
	ConfigName  = "config.yaml"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "HISTSYNC_CONFIG_DIR"
	EnvDataDir   = "HISTSYNC_DATA_DIR"
	EnvSyncDir   = "HISTSYNC_SYNC_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/histsync (fallback ~/.config/histsync)
// macOS:   ~/Library/Application Support/histsync
// Windows: %APPDATA%/histsync
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "histsync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "histsync"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "histsync"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory. The
// data directory is strictly per-user local storage; it must never point at
// a network share.
//
// Linux:   $XDG_DATA_HOME/histsync (fallback ~/.local/share/histsync)
// macOS:   ~/Library/Application Support/histsync
// Windows: %APPDATA%/histsync
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "histsync"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "histsync"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "histsync"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > HISTSYNC_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configValue > HISTSYNC_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ResolveSyncDir returns the shared sync folder following the precedence
// chain: flag > configValue > HISTSYNC_SYNC_DIR env > <dataDir>/sync.
//
// The computed default keeps a machine functional with no shared folder
// configured at all: it syncs with itself until an operator points it at the
// real share.
func ResolveSyncDir(flag, configValue, dataDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvSyncDir); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Join(dataDir, SyncDirName), nil
}

// LocalDBPath returns the local database file location inside dataDir.
func LocalDBPath(dataDir string) string {
	return filepath.Join(dataDir, LocalDBName)
}

// MarkerPath returns the import marker index location inside dataDir. The
// marker file is per-machine state and deliberately lives next to the local
// database, never in the shared folder.
func MarkerPath(dataDir string) string {
	return filepath.Join(dataDir, MarkerName)
}

// LogPath returns the rotating log file location inside dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(dataDir, LogName)
}
