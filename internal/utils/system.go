package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether fd is attached to a terminal (including Cygwin/MSYS ptys).
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// EnsureFilepathExists creates the parent directory of filePath if it does not exist.
func EnsureFilepathExists(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
