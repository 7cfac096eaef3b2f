package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path by writing to a temp file in the same
// directory and renaming it into place, so a crash mid-save never
// leaves a truncated config behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(perm)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}

	// Best effort: make the rename itself durable.
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir derives from the config path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}
	return nil
}
