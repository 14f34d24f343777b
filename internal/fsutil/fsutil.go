// Package fsutil holds the file moves and directory clearing the pipeline's
// archival and cleanup tasks need.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// rename is swapped in tests to force the cross-device path.
var rename = os.Rename

// Move relocates src to dst, replacing dst if it exists. When src and dst are
// on different filesystems the file is copied and src removed.
func Move(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("move %s -> %s: remove source: %w", src, dst, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Copy copies src to dst atomically, replacing dst. src is left in place.
func Copy(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// EntryError is one entry ClearDir could not remove.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string { return fmt.Sprintf("remove %s: %v", e.Path, e.Err) }

// ClearDir removes every entry of dir: files and symlinks directly (links
// are never followed), subdirectories recursively. dir itself is kept.
// A failure on one entry does not stop the others; those failures are
// returned as failed. err is non-nil only when dir cannot be listed, and
// matches os.ErrNotExist when dir is absent.
func ClearDir(dir string) (removed int, failed []EntryError, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		var rerr error
		if e.IsDir() {
			rerr = removeAll(p)
		} else {
			rerr = remove(p)
		}
		if rerr != nil {
			failed = append(failed, EntryError{Path: p, Err: rerr})
			continue
		}
		removed++
	}
	return removed, failed, nil
}

// Seams for per-entry failure tests.
var (
	remove    = os.Remove
	removeAll = os.RemoveAll
)
