package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dryRun bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the agent, keeping its settings",
	Long: `Pull the latest agent, reinstall dependencies, restart the service if it
is running and append settings keys introduced by the new version.

With --dry-run nothing is changed; the settings keys that would be added
are shown as a unified diff.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the settings change without applying anything")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if !dryRun {
		_, err = a.machine().Update(cmd.Context())

		return err
	}

	plan, err := a.machine().PlanUpdate()
	if err != nil {
		return err
	}

	switch {
	case len(plan.AddedKeys) == 0:
		fmt.Fprintf(a.out, "%s is complete, nothing to add\n", plan.ConfigFile)
	case plan.Missing:
		fmt.Fprintf(a.out, "%s is missing and would be created with %d keys\n", plan.ConfigFile, len(plan.AddedKeys))
		fmt.Fprint(a.out, plan.Diff)
	default:
		fmt.Fprintf(a.out, "%d keys would be added to %s\n", len(plan.AddedKeys), plan.ConfigFile)
		fmt.Fprint(a.out, plan.Diff)
	}

	return nil
}
