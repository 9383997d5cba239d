package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	internalconfig "github.com/voltwatch/victronctl/internal/config"
	"github.com/voltwatch/victronctl/internal/schema"
)

var (
	schemaOutput  string
	schemaCompact bool
	initForce     bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the installer configuration",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration after merging defaults, the config file,
VICTRONCTL_* environment variables and flags.`,
	Args: cobra.NoArgs,
	RunE: runConfigDump,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON Schema for the configuration",
	Long: `Generate a JSON Schema (Draft 2020-12) for the victronctl configuration.

Examples:
  victronctl config schema                       # Print to stdout
  victronctl config schema --output schema.json  # Write to file
  victronctl config schema --compact             # Compact output`,
	Args: cobra.NoArgs,
	RunE: runConfigSchema,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the built-in defaults to /etc/victronctl/config.toml, or to the
path given with --config. An existing file is kept unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configSchemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write schema to file instead of stdout")
	configSchemaCmd.Flags().BoolVar(&schemaCompact, "compact", false, "Output compact JSON without indentation")
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configDumpCmd, configSchemaCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return internalconfig.NewWriter().Encode(cmd.OutOrStdout(), cfg)
}

func runConfigSchema(cmd *cobra.Command, _ []string) error {
	data, err := schema.GenerateJSON(!schemaCompact)
	if err != nil {
		return errors.Wrap(err, "generating schema")
	}

	if schemaOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)

		return errors.Wrap(err, "writing schema")
	}

	const filePerms = 0o644

	if err := os.WriteFile(schemaOutput, data, filePerms); err != nil {
		return errors.Wrap(err, "writing schema file")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOutput)

	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = internalconfig.SystemConfigPath
	}

	writer := internalconfig.NewWriter()
	if initForce {
		writer = internalconfig.NewForceWriter()
	}

	if err := writer.WriteFile(path, internalconfig.DefaultConfig()); err != nil {
		err = errors.Wrap(err, "writing configuration")
		if errors.Is(err, internalconfig.ErrConfigExists) {
			err = errors.WithHint(err, "use --force to overwrite")
		}

		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)

	return nil
}
