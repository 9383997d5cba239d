package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/voltwatch/victronctl/internal/report"
)

var outputFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installation, revision, service and settings state",
	Long: `Report which installation markers exist, the checked-out agent revision,
the systemd state of the unit and whether settings.ini lacks keys the
current agent expects. Needs no privileges and changes nothing.

Examples:
  victronctl status
  victronctl status --output json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", string(report.FormatTable),
		"Output format: table, json or yaml")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ins, err := a.machine().Inspect(cmd.Context())
	if err != nil {
		return err
	}

	return report.Render(a.out, ins, format, report.Options{Theme: a.theme, Now: time.Now()})
}
