package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/config"
	"pipeline-oracle/internal/logging"
	"pipeline-oracle/internal/oracle"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
	orc     *oracle.Oracle
)

var rootCmd = &cobra.Command{
	Use:   "pipeline-oracle",
	Short: "Pipeline Oracle forecasts when a requisition will be filled",
	Long: `Monte-Carlo forecasting of requisition fill dates from the live candidate pipeline,
adjusted for recruiter and hiring-manager capacity. Without a subcommand it serves the
forecasting tools over MCP on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		cat, err := cfg.Catalog()
		if err != nil {
			return err
		}
		orc = oracle.New(cat, oracle.Options{
			Workers: cfg.Workers,
			Penalty: capacity.Config{HorizonWeeks: cfg.HorizonWeeks},
		})

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("Pipeline Oracle starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
