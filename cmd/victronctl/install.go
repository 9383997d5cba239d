package main

import (
	"github.com/spf13/cobra"
)

var noStart bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the agent and its service",
	Long: `Clone the agent, install its dependencies, expose it as
/usr/local/bin/victron_monitor, create settings.ini in the operator's home
and register the systemd unit.

Refuses to run when any part of an installation already exists; use update
or uninstall instead.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&noStart, "no-start", false, "Enable the unit without starting it")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.machine().Install(cmd.Context())

	return err
}
