package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.rubricrank/logs, or a temp directory when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rubricrank", "logs")
	}
	return filepath.Join(home, ".rubricrank", "logs")
}

// DefaultLogPath returns the default log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "rubricrank.log")
}
