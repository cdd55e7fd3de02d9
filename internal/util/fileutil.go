package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AtomicWrite writes r to a temp file next to dst and renames it into place.
func AtomicWrite(fs afero.Fs, dst string, r io.Reader, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	tmp := dst + ".pushsync.tmp"
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

func RemoveIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}

// MakeWritable adds the owner write bit to an existing file. Missing files
// are not an error.
func MakeWritable(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.Mode().Perm()&0200 != 0 {
		return nil
	}

	if err := fs.Chmod(path, info.Mode().Perm()|0200); err != nil {
		return fmt.Errorf("failed to clear read-only on %s: %w", path, err)
	}

	return nil
}
