package commands

import (
	"fmt"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/knobs"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the what-if knob presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"presets":  knobs.Presets(),
			"defaults": knobs.Defaults(),
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a forecast request document",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := api.Schema()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), s)
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the stage catalog in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeJSON(cmd.OutOrStdout(), orc.Catalog())
	},
}

var versionCmd = &cobra.Command{
	Use:              "version",
	Short:            "Print version information",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pipeline-oracle %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd, schemaCmd, catalogCmd, versionCmd)
}
