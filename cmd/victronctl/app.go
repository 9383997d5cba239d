package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/voltwatch/victronctl/internal/binder"
	"github.com/voltwatch/victronctl/internal/color"
	internalconfig "github.com/voltwatch/victronctl/internal/config"
	"github.com/voltwatch/victronctl/internal/deps"
	"github.com/voltwatch/victronctl/internal/exec"
	"github.com/voltwatch/victronctl/internal/lifecycle"
	"github.com/voltwatch/victronctl/internal/probe"
	"github.com/voltwatch/victronctl/internal/prompt"
	"github.com/voltwatch/victronctl/internal/service"
	"github.com/voltwatch/victronctl/internal/source"
	"github.com/voltwatch/victronctl/pkg/config"
	"github.com/voltwatch/victronctl/pkg/logger"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	theme    color.Theme
	out      io.Writer
	in       io.Reader
	closeLog func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, closeLog := openLogger(cfg, cmd.ErrOrStderr())

	log.Debug("config loaded",
		"backend", string(cfg.Source.Backend),
		"install_dir", cfg.Paths.InstallDir,
		"root", rootDir,
	)

	return &app{
		cfg:      cfg,
		log:      log,
		theme:    color.NewTheme(color.Profile(noColorFlag)),
		out:      cmd.OutOrStdout(),
		in:       cmd.InOrStdin(),
		closeLog: closeLog,
	}, nil
}

func (a *app) close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log: %v\n", err)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := internalconfig.NewKoanfLoader(configPath).Load(flagOverrides(cmd))
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}

	return cfg, nil
}

// flagOverrides collects the config flags the operator actually set.
func flagOverrides(cmd *cobra.Command) map[string]any {
	flags := map[string]any{}

	for name, value := range map[string]any{
		"git-backend": gitBackend,
		"source-url":  sourceURL,
		"log-level":   logLevel,
		"log-file":    logFile,
		"timeout":     timeout,
		"no-start":    noStart,
	} {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	return flags
}

// openLogger opens the installer log at the configured level. The debug and
// trace flags override it. An unwritable log file, as for status run by an
// unprivileged user, silences logging instead of failing the command.
func openLogger(cfg *config.Config, stderr io.Writer) (logger.Logger, func() error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelInfo
	}

	if debugMode || traceMode {
		level = logger.LevelDebug
	}

	log, err := logger.NewFileLoggerWithLevel(cfg.Log.File, level)
	if err != nil {
		if debugMode || traceMode {
			fmt.Fprintf(stderr, "logging disabled: %v\n", err)
		}

		return logger.NewNoOpLogger(), func() error { return nil }
	}

	return log, log.Close
}

func (a *app) runner() exec.CommandRunner {
	return exec.NewCommandRunner(time.Duration(a.cfg.Exec.Timeout))
}

// requiredTools lists the system tools a full probe insists on.
func (a *app) requiredTools() []string {
	tools := []string{"systemctl"}
	if a.cfg.Source.Backend == config.GitBackendCLI {
		tools = append(tools, "git")
	}

	return tools
}

func (a *app) backend(runner exec.CommandRunner) source.Backend {
	if a.cfg.Source.Backend == config.GitBackendCLI {
		return source.NewCLIBackend(runner, "git")
	}

	return source.NewSDKBackend()
}

func (a *app) machine() *lifecycle.Machine {
	runner := a.runner()

	opts := []lifecycle.Option{lifecycle.WithOutput(a.out, a.theme)}
	if rootDir != "" {
		opts = append(opts, lifecycle.WithRoot(rootDir))
	}

	return lifecycle.NewMachine(a.cfg, lifecycle.Components{
		Prober: probe.NewProber(runner, exec.NewToolChecker(), a.log, probe.Options{
			Candidates:    a.cfg.Runtime.Candidates,
			MinVersion:    a.cfg.Runtime.MinVersion,
			RequiredTools: a.requiredTools(),
		}),
		Source:   source.NewSynchronizer(a.backend(runner), a.cfg.Source.URL, a.cfg.Source.Remote, a.log),
		Deps:     deps.NewProvisioner(runner, a.cfg.Runtime.BootstrapPackages, a.log),
		Binder:   binder.NewBinder(a.log),
		Services: service.NewController(runner, a.log),
		Prompter: a.prompter(),
	}, a.log, opts...)
}

// prompter uses huh forms when both ends are a terminal and line prompts
// otherwise.
//
//nolint:ireturn // the concrete prompter depends on the session
func (a *app) prompter() prompt.Prompter {
	return prompt.New(a.in, a.out, color.IsInteractive())
}
