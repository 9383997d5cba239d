// Package probe inspects the host before any flow runs: privilege, the
// operator account, a suitable interpreter and its package installer.
package probe

import (
	"context"
	"os"
	"os/user"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var (
	// ErrPrivilege is returned when the process is not running as root.
	ErrPrivilege = errors.New("root privileges required")

	// ErrRuntimeNotFound is returned when no interpreter candidate is on PATH.
	ErrRuntimeNotFound = errors.New("no python runtime found")

	// ErrRuntimeTooOld is returned when every found interpreter is below the minimum.
	ErrRuntimeTooOld = errors.New("python runtime too old")

	// ErrPackageManagerUnavailable is returned when pip is missing and cannot be bootstrapped.
	ErrPackageManagerUnavailable = errors.New("pip unavailable")

	// ErrToolMissing is returned when a required system tool is not on PATH.
	ErrToolMissing = errors.New("required tool missing")

	// ErrAccount is returned when the operator account cannot be resolved.
	ErrAccount = errors.New("cannot resolve operator account")
)

// sudoUserEnv names the account that invoked sudo.
const sudoUserEnv = "SUDO_USER"

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// Environment is what the prober learned about the host.
type Environment struct {
	Elevated bool

	// Username, HomeDir, UID and GID describe the operator account: the
	// sudo invoker when present, otherwise the process user.
	Username string
	Group    string
	HomeDir  string
	UID      int
	GID      int

	// ViaSudo is true when the account came from SUDO_USER.
	ViaSudo bool

	RuntimePath    string
	RuntimeVersion *semver.Version

	// PipBootstrapped is true when ensurepip had to run.
	PipBootstrapped bool
}

// Options configures discovery.
type Options struct {
	// Candidates are interpreter names tried in order.
	Candidates []string

	// MinVersion is the lowest accepted interpreter version.
	MinVersion string

	// RequiredTools must all be on PATH.
	RequiredTools []string
}

// Prober runs the host checks.
type Prober struct {
	runner exec.CommandRunner
	tools  exec.ToolChecker
	log    logger.Logger
	opts   Options

	geteuid     func() int
	getenv      func(string) string
	lookupUser  func(string) (*user.User, error)
	currentUser func() (*user.User, error)
	lookupGroup func(string) (*user.Group, error)
}

// Option customizes a Prober.
type Option func(*Prober)

// WithEUID replaces os.Geteuid.
func WithEUID(fn func() int) Option {
	return func(p *Prober) { p.geteuid = fn }
}

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(p *Prober) { p.getenv = fn }
}

// WithUserLookup replaces user.Lookup and user.Current.
func WithUserLookup(lookup func(string) (*user.User, error), current func() (*user.User, error)) Option {
	return func(p *Prober) {
		p.lookupUser = lookup
		p.currentUser = current
	}
}

// NewProber creates a Prober.
func NewProber(
	runner exec.CommandRunner,
	tools exec.ToolChecker,
	log logger.Logger,
	opts Options,
	options ...Option,
) *Prober {
	p := &Prober{
		runner:      runner,
		tools:       tools,
		log:         log,
		opts:        opts,
		geteuid:     os.Geteuid,
		getenv:      os.Getenv,
		lookupUser:  user.Lookup,
		currentUser: user.Current,
		lookupGroup: user.LookupGroupId,
	}

	for _, o := range options {
		o(p)
	}

	return p
}

// Probe runs every check in order and stops at the first failure.
func (p *Prober) Probe(ctx context.Context) (*Environment, error) {
	env := &Environment{}

	if p.geteuid() != 0 {
		return nil, errors.WithHint(ErrPrivilege, "re-run with sudo")
	}

	env.Elevated = true

	if err := p.resolveAccount(env); err != nil {
		return nil, err
	}

	for _, tool := range p.opts.RequiredTools {
		if err := p.tools.RequireTool(tool); err != nil {
			return nil, errors.Mark(err, ErrToolMissing)
		}
	}

	if err := p.findRuntime(ctx, env); err != nil {
		return nil, err
	}

	if err := p.ensurePip(ctx, env); err != nil {
		return nil, err
	}

	p.log.Info("environment probed",
		"user", env.Username,
		"home", env.HomeDir,
		"runtime", env.RuntimePath,
		"version", env.RuntimeVersion.String(),
	)

	return env, nil
}

// ResolveAccount fills only the account fields. Commands that do not need a
// runtime, like status, use it instead of Probe.
func (p *Prober) ResolveAccount() (*Environment, error) {
	env := &Environment{Elevated: p.geteuid() == 0}

	if err := p.resolveAccount(env); err != nil {
		return nil, err
	}

	return env, nil
}

func (p *Prober) resolveAccount(env *Environment) error {
	var (
		u   *user.User
		err error
	)

	if name := p.getenv(sudoUserEnv); name != "" && name != "root" {
		u, err = p.lookupUser(name)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "looking up %s=%s", sudoUserEnv, name), ErrAccount)
		}

		env.ViaSudo = true
	} else {
		u, err = p.currentUser()
		if err != nil {
			return errors.Mark(errors.Wrap(err, "looking up current user"), ErrAccount)
		}
	}

	if u.HomeDir == "" {
		return errors.Wrapf(ErrAccount, "%s has no home directory", u.Username)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "uid of %s", u.Username), ErrAccount)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "gid of %s", u.Username), ErrAccount)
	}

	env.Username = u.Username
	env.Group = u.Gid
	env.HomeDir = u.HomeDir
	env.UID = uid
	env.GID = gid

	if g, err := p.lookupGroup(u.Gid); err == nil {
		env.Group = g.Name
	}

	return nil
}

func (p *Prober) findRuntime(ctx context.Context, env *Environment) error {
	minVersion, err := semver.NewVersion(p.opts.MinVersion)
	if err != nil {
		return errors.Wrapf(err, "parsing minimum runtime version %q", p.opts.MinVersion)
	}

	var tooOld []string

	for _, candidate := range p.opts.Candidates {
		path := p.tools.FindTool(candidate)
		if path == "" {
			continue
		}

		version, err := p.RuntimeVersion(ctx, path)
		if err != nil {
			p.log.Debug("skipping runtime candidate", "path", path, "error", err)

			continue
		}

		if version.LessThan(minVersion) {
			tooOld = append(tooOld, path+" "+version.String())

			continue
		}

		env.RuntimePath = path
		env.RuntimeVersion = version

		return nil
	}

	if len(tooOld) > 0 {
		return errors.Wrapf(ErrRuntimeTooOld, "need >= %s, found %v", minVersion, tooOld)
	}

	return errors.Wrapf(ErrRuntimeNotFound, "tried %v", p.opts.Candidates)
}

// RuntimeVersion asks the interpreter at path for its version. A missing
// patch component reads as zero.
func (p *Prober) RuntimeVersion(ctx context.Context, path string) (*semver.Version, error) {
	result := p.runner.Run(ctx, path, "--version")
	if result.Failed() {
		return nil, errors.Newf("%s --version exited %d: %s", path, result.ExitCode, result.Output())
	}

	match := versionPattern.FindString(result.Output())
	if match == "" {
		return nil, errors.Newf("no version in %q", result.Output())
	}

	version, err := semver.NewVersion(match)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing version %q", match)
	}

	return version, nil
}

func (p *Prober) ensurePip(ctx context.Context, env *Environment) error {
	if p.pipAvailable(ctx, env.RuntimePath) {
		return nil
	}

	p.log.Info("pip missing, bootstrapping with ensurepip", "runtime", env.RuntimePath)

	result := p.runner.Run(ctx, env.RuntimePath, "-m", "ensurepip", "--upgrade")
	if result.Failed() {
		return errors.Wrapf(ErrPackageManagerUnavailable, "ensurepip: %s", result.Output())
	}

	if !p.pipAvailable(ctx, env.RuntimePath) {
		return errors.Wrap(ErrPackageManagerUnavailable, "pip still missing after ensurepip")
	}

	env.PipBootstrapped = true

	return nil
}

func (p *Prober) pipAvailable(ctx context.Context, runtimePath string) bool {
	return p.runner.Run(ctx, runtimePath, "-m", "pip", "--version").Success()
}
