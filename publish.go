package pomps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPath is the deterministic in-progress name of a file artifact.
func tempPath(path string) string { return path + ".tmp" }

// tempDir is the deterministic in-progress name of a directory artifact.
func tempDir(dir string) string { return dir + "_tmp" }

// fileExists reports whether path is a published regular file.
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory, expected a file artifact", path)
	}
	return true, nil
}

// dirExists reports whether dir is a published directory.
func dirExists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is a file, expected a directory artifact", dir)
	}
	return true, nil
}

// publishFile syncs tmp and renames it onto path, then syncs the parent
// directory so the rename survives a crash.
func publishFile(tmp, path string) error {
	f, err := os.OpenFile(tmp, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stage produced no output at %s", tmp)
		}
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	_ = syncDir(filepath.Dir(path))
	return nil
}

// publishDir renames a fully written directory onto dir as one unit.
func publishDir(tmp, dir string) error {
	if err := os.Rename(tmp, dir); err != nil {
		return err
	}
	_ = syncDir(filepath.Dir(dir))
	return nil
}

// syncDir fsyncs a directory to persist rename metadata. Best effort: some
// platforms do not support syncing directories.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
