// Package binder points the agent's entry script at the resolved
// interpreter and exposes it on PATH.
package binder

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/pkg/logger"
)

// ExecutableMode is the permission of a bound script.
const ExecutableMode = 0o755

var (
	// ErrSourceScriptMissing is returned when the synchronized tree lacks the entry script.
	ErrSourceScriptMissing = errors.New("entry script missing from source tree")

	// ErrBind is returned when rewriting or exposing the script fails.
	ErrBind = errors.New("binding entry script failed")

	// ErrUnknownMode is returned for a Mode outside the enum.
	ErrUnknownMode = errors.New("unknown bind mode")
)

// Binder rewrites the interpreter line and places the script on PATH.
type Binder struct {
	log logger.Logger
}

// NewBinder creates a Binder.
func NewBinder(log logger.Logger) *Binder {
	return &Binder{log: log}
}

// Bind rewrites sourceScript's shebang to runtimePath, makes it executable
// and exposes it at targetPath according to mode.
func (b *Binder) Bind(mode Mode, sourceScript, runtimePath, targetPath string) error {
	if !mode.IsAMode() {
		return errors.Wrapf(ErrUnknownMode, "%d", int(mode))
	}

	data, err := os.ReadFile(sourceScript) //nolint:gosec // path comes from the layout
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrSourceScriptMissing, "%s", sourceScript)
		}

		return errors.Mark(errors.Wrapf(err, "reading %s", sourceScript), ErrBind)
	}

	if err := fsutil.AtomicWriteFile(sourceScript, RewriteShebang(data, runtimePath), ExecutableMode); err != nil {
		return errors.Mark(errors.Wrapf(err, "rewriting %s", sourceScript), ErrBind)
	}

	// AtomicWriteFile keeps an existing mode; force the executable bits.
	if err := os.Chmod(sourceScript, ExecutableMode); err != nil {
		return errors.Mark(errors.Wrapf(err, "chmod %s", sourceScript), ErrBind)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), fsutil.DefaultDirPermissions); err != nil {
		return errors.Mark(errors.Wrapf(err, "creating %s", filepath.Dir(targetPath)), ErrBind)
	}

	switch mode {
	case ModeFresh:
		err = b.move(sourceScript, targetPath)
	case ModeUpdate:
		err = b.link(sourceScript, targetPath)
	}

	if err != nil {
		return errors.Mark(err, ErrBind)
	}

	b.log.Info("bound entry script", "mode", mode.String(), "target", targetPath, "runtime", runtimePath)

	return nil
}

func (*Binder) move(sourceScript, targetPath string) error {
	if _, err := fsutil.RemoveIfExists(targetPath); err != nil {
		return errors.Wrapf(err, "removing old %s", targetPath)
	}

	return errors.Wrapf(fsutil.MoveFile(sourceScript, targetPath), "moving to %s", targetPath)
}

func (*Binder) link(sourceScript, targetPath string) error {
	// A sibling temp link renamed over the target keeps the swap atomic.
	tmp := targetPath + ".new"
	_ = os.Remove(tmp)

	if err := os.Symlink(sourceScript, tmp); err != nil {
		return errors.Wrapf(err, "linking %s", targetPath)
	}

	if err := os.Rename(tmp, targetPath); err != nil {
		_ = os.Remove(tmp)

		return errors.Wrapf(err, "replacing %s", targetPath)
	}

	return nil
}

// RewriteShebang replaces the first line when it is an interpreter line and
// inserts one otherwise. Applying it twice yields the same bytes.
func RewriteShebang(data []byte, runtimePath string) []byte {
	shebang := []byte("#!" + runtimePath + "\n")

	if !bytes.HasPrefix(data, []byte("#!")) {
		return append(shebang, data...)
	}

	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		return append(shebang, data[idx+1:]...)
	}

	return shebang
}
