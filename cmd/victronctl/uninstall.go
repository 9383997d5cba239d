package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var assumeYes bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the agent, its service and its settings",
	Long: `Stop and remove the systemd unit, delete the source tree and the
executable, then delete settings.ini and the agent's log files. The
settings directory is removed only when nothing else is left in it.

Partial installations are cleaned up as far as they exist. You are asked
to confirm unless --yes is given; without a terminal the answer is read
from stdin.`,
	Args: cobra.NoArgs,
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if !assumeYes {
		ok, err := a.prompter().Confirm("Remove the agent and its settings?", false)
		if err != nil {
			err = errors.Wrap(err, "reading confirmation")
			if errors.Is(err, io.EOF) {
				err = errors.WithHint(err, "pass --yes when running without a terminal")
			}

			return err
		}

		if !ok {
			fmt.Fprintln(a.out, "Cancelled, nothing changed")

			return nil
		}
	}

	_, err = a.machine().Uninstall(cmd.Context())

	return err
}
