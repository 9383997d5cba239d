// Package fsutil holds the small filesystem primitives shared by the
// installer components: atomic writes, copies, cross-device moves and
// idempotent removals.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultDirPermissions is used for parent directories created on write.
	DefaultDirPermissions = 0o755

	// DefaultFilePermissions is used for new files written without an explicit mode.
	DefaultFilePermissions = 0o600
)

// Exists reports whether anything (file, dir, dangling symlink) lives at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)

	return err == nil
}

// AtomicWriteFile writes data next to path and renames it into place.
// Existing files keep their permissions; new files get perm.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpFile := path + ".tmp"

	//nolint:gosec // G306: perm is chosen by the caller per file role
	if err := os.WriteFile(tmpFile, data, perm); err != nil {
		return errors.Wrap(err, "failed to write temp file")
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)

		return errors.Wrap(err, "failed to rename temp file")
	}

	return nil
}

// CopyFile copies src to dst, preserving the source mode.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // src is controlled by caller
	if err != nil {
		return errors.Wrap(err, "failed to read source file")
	}

	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "failed to stat source file")
	}

	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return errors.Wrap(err, "failed to write destination file")
	}

	// WriteFile leaves the mode of an existing dst untouched.
	return errors.Wrap(os.Chmod(dst, info.Mode().Perm()), "failed to chmod destination file")
}

// MoveFile renames src to dst, replacing dst. When the two paths live on
// different filesystems the file is copied and the source removed.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, syscall.EXDEV) {
		return errors.Wrap(err, "failed to rename file")
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".move-tmp")
	if err := CopyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)

		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrap(err, "failed to place moved file")
	}

	return errors.Wrap(os.Remove(src), "failed to remove moved source")
}

// RemoveIfExists removes a file or symlink; a missing path is not an error.
func RemoveIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, errors.Wrapf(err, "failed to remove %s", path)
}

// RemoveAllIfExists removes a directory tree; a missing path is not an error.
func RemoveAllIfExists(path string) (bool, error) {
	if !Exists(path) {
		return false, nil
	}

	if err := os.RemoveAll(path); err != nil {
		return false, errors.Wrapf(err, "failed to remove %s", path)
	}

	return true, nil
}

// IsEmptyDir reports whether path is a directory with no entries.
func IsEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)

	return err == nil && len(entries) == 0
}
