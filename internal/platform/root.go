package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/refman/pkg/adapters/fs"
)

// FindRoot walks upwards from startDir looking for a library root.
// Indicators are the event log, the settings file or the system directory.
// It returns the absolute path of the first directory holding one of them.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, fs.LogFileName) || hasFile(dir, ConfigFileName) || hasFile(dir, fs.DefaultSystemDir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no refman root found above %s", abs)
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
