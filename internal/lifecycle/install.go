package lifecycle

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/binder"
	"github.com/voltwatch/victronctl/internal/service"
)

// install clones, provisions, binds, seeds settings and registers the unit.
// The caller guarantees no marker is present.
func (m *Machine) install(ctx context.Context, s *session) (Outcome, error) {
	start := m.now()
	out := Outcome{Action: ActionInstall}
	l := s.layout

	m.step("Cloning %s", m.cfg.Source.URL)

	if err := m.c.Source.SyncFresh(ctx, m.cfg.Source.URL, l.InstallDir); err != nil {
		return out, errors.Wrap(err, "cloning source")
	}

	if head, err := m.c.Source.Head(ctx, l.InstallDir); err != nil {
		m.log.Debug("revision lookup failed", "dir", l.InstallDir, "error", err)
	} else {
		out.Head = head
		m.done("%s at %s", l.InstallDir, head.Short())
	}

	m.step("Installing dependencies from %s", l.Manifest)

	if err := m.c.Deps.Provision(ctx, s.env.RuntimePath, l.Manifest); err != nil {
		return out, errors.Wrap(err, "installing dependencies")
	}

	m.step("Binding %s", l.BinPath)

	if err := m.c.Binder.Bind(binder.ModeFresh, l.SourceScript, s.env.RuntimePath, l.BinPath); err != nil {
		return out, errors.Wrap(err, "binding executable")
	}

	m.step("Preparing settings in %s", l.ConfigFile)

	created, err := s.settings.EnsureDefault(l.ConfigFile, m.template)
	if err != nil {
		return out, errors.Wrap(err, "writing default settings")
	}

	out.ConfigCreated = created
	if created {
		m.advise("fill in %s before relying on alerts", l.ConfigFile)
	} else {
		m.done("kept existing settings")
	}

	m.step("Registering %s", l.ServiceName)

	unit := service.NewUnit(l.ServiceName, l.UnitPath, m.cfg.Service.Description, l.BinPath, s.env.Username, s.env.Group)

	if m.cfg.Service.IsStartOnInstall() {
		if err := m.c.Services.InstallAndStart(ctx, unit); err != nil {
			return out, errors.Wrap(err, "installing service")
		}

		out.Started = true
		m.done("%s enabled and started", l.ServiceName)
	} else {
		if err := m.c.Services.Install(ctx, unit); err != nil {
			return out, errors.Wrap(err, "installing service")
		}

		m.advise("%s is enabled but not running; start it with: systemctl start %s", l.ServiceName, l.ServiceName)
	}

	out.Elapsed = m.now().Sub(start)

	return out, nil
}
