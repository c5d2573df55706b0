package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the pebble data directory. XWORK_DATA_DIR wins;
// otherwise it prefers standard OS locations and falls back to a dotdir in
// the user's home directory.
func DefaultDataDir() string {
	if dir := os.Getenv("XWORK_DATA_DIR"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "xwork")
	}

	// Common Linux/Unix system dir
	if isDir("/var/lib") {
		return "/var/lib/xwork"
	}

	// macOS: ~/Library/Application Support/Xwork
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Xwork")
	}

	// Windows: %USERPROFILE%/AppData/Local/Xwork
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Xwork")
	}

	// Fallback: ~/.xwork
	return filepath.Join(homeDir, ".xwork")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
