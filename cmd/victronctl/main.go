// Package main provides the CLI entry point for victronctl.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

const (
	// ExitCodeOK covers success and a cancelled menu.
	ExitCodeOK = 0

	// ExitCodeError covers every fatal error.
	ExitCodeError = 1
)

var (
	configPath  string
	debugMode   bool
	traceMode   bool
	noColorFlag bool
	rootDir     string
	gitBackend  string
	sourceURL   string
	logLevel    string
	logFile     string
	timeout     string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)

		return ExitCodeError
	}

	return ExitCodeOK
}

// printError writes "Error: <step>: <cause>" and any hints attached on the way up.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

var rootCmd = &cobra.Command{
	Use:   "victronctl",
	Short: "Install, update or remove the Victron monitoring agent",
	Long: `victronctl manages the Victron monitoring agent on this host.

Run without a subcommand it inspects the host: a missing installation is
installed right away, an existing one offers a menu to update, uninstall
or cancel. The agent's settings.ini survives every update; new keys are
appended with their defaults and existing values are never changed.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		checkVersionFlag()
	},
	RunE:              runInteractive,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "",
		"Path to installer configuration (default: /etc/victronctl/config.toml)")
	flags.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	flags.BoolVar(&traceMode, "trace", false, "Enable trace logging")
	flags.BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	flags.StringVar(&rootDir, "root", "",
		"Treat this directory as the filesystem root for every installation path")
	flags.StringVar(&gitBackend, "git-backend", "", "Git implementation: sdk or cli")
	flags.StringVar(&sourceURL, "source-url", "", "Clone URL of the agent repository")
	flags.StringVar(&logLevel, "log-level", "", "Installer log level: DEBUG, INFO or ERROR")
	flags.StringVar(&logFile, "log-file", "", "Installer log file")
	flags.StringVar(&timeout, "timeout", "", "Bound every external command, e.g. 10m (0 means none)")
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.machine().Run(cmd.Context())

	return err
}
