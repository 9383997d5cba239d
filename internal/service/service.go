// Package service manages the agent's systemd unit.
package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/pkg/logger"
)

// UnitFileMode is the permission of a written unit file.
const UnitFileMode = 0o644

var (
	// ErrServiceInstall is returned when writing, enabling or starting the unit fails.
	ErrServiceInstall = errors.New("service install failed")

	// ErrServiceRestart is returned when restarting an active unit fails.
	ErrServiceRestart = errors.New("service restart failed")

	// ErrServiceRemove is returned when stopping, disabling or deleting the unit fails.
	ErrServiceRemove = errors.New("service removal failed")
)

// RestartResult reports what RestartIfActive did.
type RestartResult struct {
	Restarted bool
}

// State is the service manager's view of a unit.
type State struct {
	Active  string `json:"active"  yaml:"active"`
	Enabled string `json:"enabled" yaml:"enabled"`
}

// Controller drives systemctl.
type Controller struct {
	runner    exec.CommandRunner
	systemctl string
	log       logger.Logger
}

// NewController creates a Controller.
func NewController(runner exec.CommandRunner, log logger.Logger) *Controller {
	return &Controller{runner: runner, systemctl: "systemctl", log: log}
}

// IsActive reports whether the unit is running.
func (c *Controller) IsActive(ctx context.Context, name string) bool {
	return c.systemd(ctx, "is-active", "--quiet", name).Success()
}

// State queries active and enabled state. Unknown units report "unknown".
func (c *Controller) State(ctx context.Context, name string) State {
	read := func(verb string) string {
		out := strings.TrimSpace(c.systemd(ctx, verb, name).Stdout)
		if out == "" {
			return "unknown"
		}

		return out
	}

	return State{Active: read("is-active"), Enabled: read("is-enabled")}
}

// Install writes the unit file, reloads systemd and enables the unit.
func (c *Controller) Install(ctx context.Context, unit Unit) error {
	content, err := unit.Render()
	if err != nil {
		return errors.Mark(err, ErrServiceInstall)
	}

	if err := fsutil.AtomicWriteFile(unit.Path, content, UnitFileMode); err != nil {
		return errors.Mark(errors.Wrapf(err, "writing %s", unit.Path), ErrServiceInstall)
	}

	c.log.Info("wrote unit file", "path", unit.Path)

	for _, args := range [][]string{{"daemon-reload"}, {"enable", unit.Name}} {
		if result := c.systemd(ctx, args...); result.Failed() {
			return errors.Wrapf(ErrServiceInstall, "systemctl %s: %s", strings.Join(args, " "), result.Output())
		}
	}

	return nil
}

// InstallAndStart installs the unit and starts it.
func (c *Controller) InstallAndStart(ctx context.Context, unit Unit) error {
	if err := c.Install(ctx, unit); err != nil {
		return err
	}

	if result := c.systemd(ctx, "start", unit.Name); result.Failed() {
		return errors.Wrapf(ErrServiceInstall, "systemctl start %s: %s", unit.Name, result.Output())
	}

	c.log.Info("service started", "name", unit.Name)

	return nil
}

// RestartIfActive restarts the unit only when it is running. An inactive
// unit is left alone and reported as not restarted.
func (c *Controller) RestartIfActive(ctx context.Context, name string) (RestartResult, error) {
	if !c.IsActive(ctx, name) {
		c.log.Info("service not active, leaving it stopped", "name", name)

		return RestartResult{}, nil
	}

	if result := c.systemd(ctx, "restart", name); result.Failed() {
		return RestartResult{}, errors.Wrapf(ErrServiceRestart, "systemctl restart %s: %s", name, result.Output())
	}

	c.log.Info("service restarted", "name", name)

	return RestartResult{Restarted: true}, nil
}

// StopDisableRemove stops an active unit, disables a present one, deletes
// the unit file and reloads systemd. Missing preconditions skip their step.
func (c *Controller) StopDisableRemove(ctx context.Context, name, unitPath string) error {
	if c.IsActive(ctx, name) {
		if result := c.systemd(ctx, "stop", name); result.Failed() {
			return errors.Wrapf(ErrServiceRemove, "systemctl stop %s: %s", name, result.Output())
		}

		c.log.Info("service stopped", "name", name)
	}

	if fsutil.Exists(unitPath) {
		if result := c.systemd(ctx, "disable", name); result.Failed() {
			return errors.Wrapf(ErrServiceRemove, "systemctl disable %s: %s", name, result.Output())
		}

		if _, err := fsutil.RemoveIfExists(unitPath); err != nil {
			return errors.Mark(errors.Wrapf(err, "removing %s", unitPath), ErrServiceRemove)
		}

		c.log.Info("unit removed", "path", unitPath)
	}

	if result := c.systemd(ctx, "daemon-reload"); result.Failed() {
		return errors.Wrapf(ErrServiceRemove, "systemctl daemon-reload: %s", result.Output())
	}

	return nil
}

func (c *Controller) systemd(ctx context.Context, args ...string) exec.CommandResult {
	return c.runner.Run(ctx, c.systemctl, args...)
}
