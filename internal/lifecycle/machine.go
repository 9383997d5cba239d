// Package lifecycle drives installation, update and removal of the agent.
package lifecycle

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/voltwatch/victronctl/internal/binder"
	"github.com/voltwatch/victronctl/internal/color"
	"github.com/voltwatch/victronctl/internal/layout"
	"github.com/voltwatch/victronctl/internal/probe"
	"github.com/voltwatch/victronctl/internal/prompt"
	"github.com/voltwatch/victronctl/internal/service"
	"github.com/voltwatch/victronctl/internal/settings"
	"github.com/voltwatch/victronctl/internal/source"
	"github.com/voltwatch/victronctl/pkg/config"
	"github.com/voltwatch/victronctl/pkg/logger"
)

var (
	// ErrFilesystem is returned when removing installed artifacts fails.
	ErrFilesystem = errors.New("filesystem operation failed")

	// ErrInvalidChoice is returned when the menu selection is not a listed number.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrAlreadyInstalled is returned by Install when any marker is present.
	ErrAlreadyInstalled = errors.New("already installed")

	// ErrNotInstalled is returned by Update when no marker is present.
	ErrNotInstalled = errors.New("not installed")
)

// Prober inspects the host before any change is made.
type Prober interface {
	Probe(ctx context.Context) (*probe.Environment, error)
	ResolveAccount() (*probe.Environment, error)
}

// Syncer keeps the source tree in step with upstream.
type Syncer interface {
	SyncFresh(ctx context.Context, url, dest string) error
	SyncExisting(ctx context.Context, dest string) (source.SyncResult, error)
	Head(ctx context.Context, dest string) (source.Revision, error)
}

// Provisioner installs the agent's runtime dependencies.
type Provisioner interface {
	Provision(ctx context.Context, runtimePath, manifestPath string) error
}

// Binder exposes the entry script on PATH.
type Binder interface {
	Bind(mode binder.Mode, sourceScript, runtimePath, targetPath string) error
}

// Services manages the systemd unit.
type Services interface {
	Install(ctx context.Context, unit service.Unit) error
	InstallAndStart(ctx context.Context, unit service.Unit) error
	RestartIfActive(ctx context.Context, name string) (service.RestartResult, error)
	StopDisableRemove(ctx context.Context, name, unitPath string) error
	State(ctx context.Context, name string) service.State
}

// Components are the collaborators a Machine sequences.
type Components struct {
	Prober   Prober
	Source   Syncer
	Deps     Provisioner
	Binder   Binder
	Services Services
	Prompter prompt.Prompter
}

// Outcome summarizes a finished run.
type Outcome struct {
	Action        Action
	Elapsed       time.Duration
	Head          source.Revision
	Recloned      bool
	Started       bool
	Restarted     bool
	ConfigCreated bool
	AddedKeys     []string
	Purged        []string
}

// Machine sequences the components for one run. Every flow is strictly
// sequential and aborts on the first error.
type Machine struct {
	cfg      *config.Config
	c        Components
	template settings.Template
	log      logger.Logger
	out      io.Writer
	theme    color.Theme
	root     string
	now      func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithRoot re-roots every layout path under root.
func WithRoot(root string) Option {
	return func(m *Machine) { m.root = root }
}

// WithTemplate replaces the current settings template.
func WithTemplate(tmpl settings.Template) Option {
	return func(m *Machine) { m.template = tmpl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithOutput sets where operator messages go and how they are styled.
func WithOutput(out io.Writer, theme color.Theme) Option {
	return func(m *Machine) {
		m.out = out
		m.theme = theme
	}
}

// NewMachine creates a Machine.
func NewMachine(cfg *config.Config, c Components, log logger.Logger, opts ...Option) *Machine {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	m := &Machine{
		cfg:      cfg,
		c:        c,
		template: settings.Current(),
		log:      log,
		out:      os.Stdout,
		theme:    color.NewTheme(false),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// session is the state every flow shares once the host has been probed.
type session struct {
	env      *probe.Environment
	layout   layout.Layout
	markers  Markers
	settings *settings.Custodian
}

// begin probes the host and detects markers. A full probe also locates the
// runtime; account-only probes still require root.
func (m *Machine) begin(ctx context.Context, full bool) (*session, error) {
	var (
		env *probe.Environment
		err error
	)

	if full {
		env, err = m.c.Prober.Probe(ctx)
	} else {
		env, err = m.account(true)
	}

	if err != nil {
		return nil, errors.Wrap(err, "probing environment")
	}

	return m.newSession(env), nil
}

func (m *Machine) account(requireRoot bool) (*probe.Environment, error) {
	env, err := m.c.Prober.ResolveAccount()
	if err != nil {
		return nil, err
	}

	if requireRoot && !env.Elevated {
		return nil, errors.WithHint(probe.ErrPrivilege, "re-run with sudo")
	}

	return env, nil
}

func (m *Machine) newSession(env *probe.Environment) *session {
	l := layout.For(m.cfg, env.HomeDir)
	if m.root != "" {
		l = l.Rooted(m.root)
	}

	var owner *settings.Owner
	if env.ViaSudo {
		owner = &settings.Owner{UID: env.UID, GID: env.GID}
	}

	markers := DetectMarkers(l)

	m.log.Debug("markers detected",
		"install_dir", markers.InstallDir.Present,
		"unit_file", markers.UnitFile.Present,
		"bound_executable", markers.BoundExecutable.Present,
	)

	return &session{
		env:      env,
		layout:   l,
		markers:  markers,
		settings: settings.NewCustodian(m.log, owner),
	}
}

// Run is the interactive entry point. An absent installation is installed
// without asking; a present one offers Update, Uninstall or Cancel.
func (m *Machine) Run(ctx context.Context) (Outcome, error) {
	s, err := m.begin(ctx, true)
	if err != nil {
		return Outcome{}, err
	}

	if s.markers.State() == StateAbsent {
		return m.finish(m.install(ctx, s))
	}

	action, err := m.choose(s)
	if err != nil {
		return Outcome{}, err
	}

	switch action {
	case ActionUpdate:
		return m.finish(m.update(ctx, s))
	case ActionUninstall:
		return m.finish(m.uninstall(ctx, s))
	default:
		m.info("Cancelled, nothing changed")

		return Outcome{Action: ActionCancel}, nil
	}
}

func (m *Machine) choose(s *session) (Action, error) {
	m.header("Existing installation found")
	m.markerLines(s.markers)

	labels := make([]string, len(menuActions))
	for i, a := range menuActions {
		labels[i] = a.Label()
	}

	idx, err := m.c.Prompter.Choose("Choose an action:", labels)
	if err != nil {
		return ActionCancel, errors.Mark(errors.Wrap(err, "reading selection"), ErrInvalidChoice)
	}

	if idx < 0 || idx >= len(menuActions) {
		return ActionCancel, errors.Wrapf(ErrInvalidChoice, "selection %d", idx+1)
	}

	m.log.Info("action selected", "action", menuActions[idx].String())

	return menuActions[idx], nil
}

// Install performs a fresh install. It refuses when any marker is present.
func (m *Machine) Install(ctx context.Context) (Outcome, error) {
	s, err := m.begin(ctx, true)
	if err != nil {
		return Outcome{}, err
	}

	if s.markers.Installed() {
		return Outcome{}, errors.WithHint(
			errors.Wrapf(ErrAlreadyInstalled, "found %s", presentPaths(s.markers)),
			"use update or uninstall",
		)
	}

	return m.finish(m.install(ctx, s))
}

// Update synchronizes an existing installation. It refuses when no marker
// is present.
func (m *Machine) Update(ctx context.Context) (Outcome, error) {
	s, err := m.begin(ctx, true)
	if err != nil {
		return Outcome{}, err
	}

	if !s.markers.Installed() {
		return Outcome{}, errors.WithHint(ErrNotInstalled, "use install")
	}

	return m.finish(m.update(ctx, s))
}

// Uninstall removes whatever part of an installation exists. It needs no
// runtime, so a broken interpreter never blocks removal.
func (m *Machine) Uninstall(ctx context.Context) (Outcome, error) {
	s, err := m.begin(ctx, false)
	if err != nil {
		return Outcome{}, err
	}

	if !s.markers.Installed() {
		m.info("Nothing is installed, nothing to remove")

		return Outcome{Action: ActionUninstall}, nil
	}

	return m.finish(m.uninstall(ctx, s))
}

func (m *Machine) finish(out Outcome, err error) (Outcome, error) {
	if err != nil {
		m.log.Error("flow failed", "action", out.Action.String(), "error", err)

		return out, err
	}

	m.summary(out)

	m.log.Info("flow finished", "action", out.Action.String(), "elapsed", out.Elapsed.String())

	return out, nil
}

func presentPaths(markers Markers) string {
	var paths []string

	for _, mk := range []Marker{markers.InstallDir, markers.UnitFile, markers.BoundExecutable} {
		if mk.Present {
			paths = append(paths, mk.Path)
		}
	}

	return strings.Join(paths, ", ")
}
