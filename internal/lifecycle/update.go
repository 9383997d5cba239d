package lifecycle

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/binder"
	"github.com/voltwatch/victronctl/internal/fsutil"
)

// update refreshes the source tree and dependencies while keeping the
// operator's settings. Settings are only ever appended to.
func (m *Machine) update(ctx context.Context, s *session) (Outcome, error) {
	start := m.now()
	out := Outcome{Action: ActionUpdate}
	l := s.layout

	backup, err := s.settings.Backup(l.ConfigFile)
	if err != nil {
		return out, errors.Wrap(err, "backing up settings")
	}

	m.step("Synchronizing %s", l.InstallDir)

	result, err := m.c.Source.SyncExisting(ctx, l.InstallDir)
	if err != nil {
		if backup != "" {
			m.log.Info("settings backup kept", "path", backup)
		}

		return out, errors.Wrap(err, "synchronizing source")
	}

	out.Head = result.Head
	out.Recloned = result.Recloned

	if result.Recloned {
		m.advise("source tree was corrupt and has been cloned again")
	}

	m.done("at %s %s", result.Head.Short(), result.Head.Subject)

	m.step("Binding %s", l.BinPath)

	if err := m.c.Binder.Bind(binder.ModeUpdate, l.SourceScript, s.env.RuntimePath, l.BinPath); err != nil {
		return out, errors.Wrap(err, "binding executable")
	}

	m.step("Installing dependencies from %s", l.Manifest)

	if err := m.c.Deps.Provision(ctx, s.env.RuntimePath, l.Manifest); err != nil {
		return out, errors.Wrap(err, "installing dependencies")
	}

	m.step("Restarting %s", l.ServiceName)

	restart, err := m.c.Services.RestartIfActive(ctx, l.ServiceName)
	if err != nil {
		return out, errors.Wrap(err, "restarting service")
	}

	out.Restarted = restart.Restarted
	if restart.Restarted {
		m.done("restarted")
	} else {
		m.advise("%s is not running; start it manually with: systemctl start %s", l.ServiceName, l.ServiceName)
	}

	if err := m.reconcileSettings(s, backup, &out); err != nil {
		return out, err
	}

	out.Elapsed = m.now().Sub(start)

	return out, nil
}

// reconcileSettings puts back a settings file the sync removed, then adds
// keys introduced by newer agent versions.
func (m *Machine) reconcileSettings(s *session, backup string, out *Outcome) error {
	path := s.layout.ConfigFile

	m.step("Reconciling settings in %s", path)

	if fsutil.Exists(path) {
		if err := s.settings.Discard(backup); err != nil {
			return errors.Wrap(err, "discarding settings backup")
		}
	} else if err := s.settings.Restore(backup, path); err != nil {
		return errors.Wrap(err, "restoring settings")
	}

	if !fsutil.Exists(path) {
		created, err := s.settings.EnsureDefault(path, m.template)
		if err != nil {
			return errors.Wrap(err, "writing default settings")
		}

		out.ConfigCreated = created
		m.advise("no settings existed; fill in %s", path)

		return nil
	}

	added, err := s.settings.MergeMissingKeys(path, m.template)
	if err != nil {
		return errors.Wrap(err, "merging settings")
	}

	out.AddedKeys = added

	if len(added) == 0 {
		m.done("settings already complete")
	} else {
		m.done("added %d new keys", len(added))
	}

	return nil
}
