package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.convo.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".convo")
}

// DBPath returns the durable key-value store path.
func DBPath(base string) string {
	return filepath.Join(base, "convo.db")
}

// MediaDir returns the directory holding resolved attachment payloads.
func MediaDir(base string) string {
	return filepath.Join(base, "media")
}

// LogPath returns the daemon log file path.
func LogPath(base string) string {
	return filepath.Join(base, "logs", "convod.log")
}

// ConfigPath returns the global config file path.
func ConfigPath(base string) string {
	return filepath.Join(base, "config.toml")
}

// EnsureDirs creates the data directory tree with proper permissions.
func EnsureDirs(base string) error {
	dirs := []string{
		base,
		MediaDir(base),
		filepath.Join(base, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
