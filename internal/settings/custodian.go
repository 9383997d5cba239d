package settings

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/pkg/logger"
)

const (
	// FileMode is the permission of a created settings file. It holds tokens.
	FileMode = 0o600

	// DirMode is the permission of a created settings directory.
	DirMode = 0o755

	// BackupSuffix is appended to the settings path to name its backup.
	BackupSuffix = ".bak"
)

// ErrSettings marks every custodian failure.
var ErrSettings = errors.New("settings file operation failed")

// Owner is the account that should own created files. Nil means the
// current process user.
type Owner struct {
	UID int
	GID int
}

// Custodian owns the lifecycle of a single settings file.
type Custodian struct {
	owner *Owner
	log   logger.Logger
}

// NewCustodian creates a Custodian. Files it creates are chowned to owner
// when owner is non-nil.
func NewCustodian(log logger.Logger, owner *Owner) *Custodian {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Custodian{owner: owner, log: log}
}

// EnsureDefault writes the full template when path is absent.
func (c *Custodian) EnsureDefault(path string, tmpl Template) (bool, error) {
	if fsutil.Exists(path) {
		c.log.Debug("settings file present, keeping it", "path", path)

		return false, nil
	}

	dir := filepath.Dir(path)

	if !fsutil.Exists(dir) {
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return false, errors.Mark(errors.Wrapf(err, "creating %s", dir), ErrSettings)
		}

		if err := c.chown(dir); err != nil {
			return false, err
		}
	}

	if err := fsutil.AtomicWriteFile(path, Render(tmpl), FileMode); err != nil {
		return false, errors.Mark(errors.Wrapf(err, "writing %s", path), ErrSettings)
	}

	if err := c.chown(path); err != nil {
		return false, err
	}

	c.log.Info("created default settings", "path", path, "schema", tmpl.Schema, "keys", len(tmpl.Entries))

	return true, nil
}

// Backup copies path to its sibling backup. It returns "" when path is absent.
func (c *Custodian) Backup(path string) (string, error) {
	if !fsutil.Exists(path) {
		c.log.Debug("no settings file to back up", "path", path)

		return "", nil
	}

	backupPath := path + BackupSuffix

	if err := fsutil.CopyFile(path, backupPath); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "backing up %s", path), ErrSettings)
	}

	if err := c.chown(backupPath); err != nil {
		return "", err
	}

	c.log.Info("backed up settings", "path", path, "backup", backupPath)

	return backupPath, nil
}

// Restore moves backupPath back to path. An empty backupPath is a no-op.
func (c *Custodian) Restore(backupPath, path string) error {
	if backupPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return errors.Mark(errors.Wrapf(err, "creating %s", filepath.Dir(path)), ErrSettings)
	}

	if err := fsutil.MoveFile(backupPath, path); err != nil {
		return errors.Mark(errors.Wrapf(err, "restoring %s", path), ErrSettings)
	}

	c.log.Info("restored settings from backup", "path", path)

	return nil
}

// Discard removes a backup that is no longer needed. An empty path is a no-op.
func (c *Custodian) Discard(backupPath string) error {
	if backupPath == "" {
		return nil
	}

	if _, err := fsutil.RemoveIfExists(backupPath); err != nil {
		return errors.Mark(errors.Wrapf(err, "removing %s", backupPath), ErrSettings)
	}

	return nil
}

// MergeMissingKeys appends every template key absent from path, leaving
// present keys untouched. It returns the added keys in template order. The
// file is only rewritten when something was added.
func (c *Custodian) MergeMissingKeys(path string, tmpl Template) ([]string, error) {
	f, err := c.Load(path)
	if err != nil {
		return nil, err
	}

	added := f.Append(tmpl.Entries...)
	if len(added) == 0 {
		c.log.Debug("settings already complete", "path", path, "schema", tmpl.Schema)

		return nil, nil
	}

	// The rename drops ownership, chown below puts it back.
	if err := fsutil.AtomicWriteFile(path, f.Bytes(), FileMode); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "writing %s", path), ErrSettings)
	}

	if err := c.chown(path); err != nil {
		return nil, err
	}

	c.log.Info("added missing settings keys", "path", path, "count", len(added))

	return added, nil
}

// Load parses the settings file at path.
func (*Custodian) Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the layout
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading %s", path), ErrSettings)
	}

	return Parse(data), nil
}

// Delete removes path. A missing file is not an error.
func (c *Custodian) Delete(path string) error {
	removed, err := fsutil.RemoveIfExists(path)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "deleting %s", path), ErrSettings)
	}

	if removed {
		c.log.Info("deleted settings", "path", path)
	}

	return nil
}

func (c *Custodian) chown(path string) error {
	if c.owner == nil {
		return nil
	}

	if err := os.Lchown(path, c.owner.UID, c.owner.GID); err != nil {
		return errors.Mark(errors.Wrapf(err, "chown %s", path), ErrSettings)
	}

	return nil
}
