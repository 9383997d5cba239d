package lifecycle

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/internal/settings"
)

// uninstall removes the unit, the source tree, the executable and the
// agent's settings. Every step tolerates its target being absent.
func (m *Machine) uninstall(ctx context.Context, s *session) (Outcome, error) {
	start := m.now()
	out := Outcome{Action: ActionUninstall}
	l := s.layout

	m.step("Removing %s", l.ServiceName)

	if err := m.c.Services.StopDisableRemove(ctx, l.ServiceName, l.UnitPath); err != nil {
		return out, errors.Wrap(err, "removing service")
	}

	m.step("Removing %s", l.InstallDir)

	if _, err := fsutil.RemoveAllIfExists(l.InstallDir); err != nil {
		return out, errors.Mark(err, ErrFilesystem)
	}

	m.step("Removing %s", l.BinPath)

	if _, err := fsutil.RemoveIfExists(l.BinPath); err != nil {
		return out, errors.Mark(err, ErrFilesystem)
	}

	m.step("Removing settings in %s", l.ConfigDir)

	if err := s.settings.Delete(l.ConfigFile); err != nil {
		return out, errors.Wrap(err, "deleting settings")
	}

	if err := s.settings.Discard(l.ConfigFile + settings.BackupSuffix); err != nil {
		return out, errors.Wrap(err, "deleting settings backup")
	}

	var patterns []string
	if m.cfg.Uninstall != nil {
		patterns = m.cfg.Uninstall.PurgePatterns
	}

	purged, err := purge(l.ConfigDir, patterns)
	out.Purged = purged

	if err != nil {
		return out, errors.Wrap(err, "purging agent files")
	}

	for _, p := range purged {
		m.log.Info("purged", "path", p)
	}

	if fsutil.IsEmptyDir(l.ConfigDir) {
		if err := os.Remove(l.ConfigDir); err != nil {
			return out, errors.Mark(errors.Wrapf(err, "removing %s", l.ConfigDir), ErrFilesystem)
		}

		m.done("removed %s", l.ConfigDir)
	} else if fsutil.Exists(l.ConfigDir) {
		m.advise("%s still holds other files and was kept", l.ConfigDir)
	}

	out.Elapsed = m.now().Sub(start)

	return out, nil
}

// purge removes everything in dir matching one of patterns and returns the
// removed paths.
func purge(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 || !fsutil.Exists(dir) {
		return nil, nil
	}

	fsys := os.DirFS(dir)

	var removed []string

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return removed, errors.Mark(errors.Wrapf(err, "matching %q", pattern), ErrFilesystem)
		}

		for _, match := range matches {
			path := filepath.Join(dir, filepath.FromSlash(match))

			if _, err := fsutil.RemoveAllIfExists(path); err != nil {
				return removed, errors.Mark(err, ErrFilesystem)
			}

			removed = append(removed, path)
		}
	}

	return removed, nil
}
