package osutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic replaces path with data. The content is written to a
// temporary file in the same directory, synced and renamed over path, and the
// directory is synced so the rename survives a crash.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmpFile.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmpFile.Chmod(perm); err != nil {
		cleanup()
		return errors.Wrap(err, "failed to set temp file permissions")
	}
	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to rename file")
	}

	return SyncDir(dir)
}

// SyncDir flushes directory metadata, such as a completed rename, to disk.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "failed to open directory")
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync directory")
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
