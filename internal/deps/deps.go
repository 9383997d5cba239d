// Package deps installs the agent's Python dependencies into the runtime.
package deps

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/internal/fsutil"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var (
	// ErrBootstrap is returned when upgrading pip and build tooling fails.
	ErrBootstrap = errors.New("package installer bootstrap failed")

	// ErrDependencyInstall is returned when the manifest cannot be installed.
	ErrDependencyInstall = errors.New("dependency install failed")
)

// Provisioner runs pip through the resolved interpreter.
type Provisioner struct {
	runner    exec.CommandRunner
	bootstrap []string
	log       logger.Logger
}

// NewProvisioner creates a Provisioner. bootstrap lists the packages
// upgraded before the manifest, typically pip, setuptools and wheel.
func NewProvisioner(runner exec.CommandRunner, bootstrap []string, log logger.Logger) *Provisioner {
	return &Provisioner{runner: runner, bootstrap: bootstrap, log: log}
}

// Provision upgrades the bootstrap packages then installs manifestPath.
func (p *Provisioner) Provision(ctx context.Context, runtimePath, manifestPath string) error {
	if !fsutil.Exists(manifestPath) {
		return errors.Wrapf(ErrDependencyInstall, "manifest %s not found", manifestPath)
	}

	if len(p.bootstrap) > 0 {
		args := append([]string{"-m", "pip", "install", "--upgrade"}, p.bootstrap...)

		p.log.Info("upgrading package installer", "packages", p.bootstrap)

		if result := p.runner.Run(ctx, runtimePath, args...); result.Failed() {
			return errors.Wrapf(ErrBootstrap, "%s", result.Output())
		}
	}

	p.log.Info("installing dependencies", "manifest", manifestPath)

	result := p.runner.Run(ctx, runtimePath, "-m", "pip", "install", "-r", manifestPath)
	if result.Failed() {
		return errors.Wrapf(ErrDependencyInstall, "%s", result.Output())
	}

	return nil
}
