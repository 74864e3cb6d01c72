package commands

import (
	"fmt"
	"os"
	"time"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/eventlog"

	"github.com/spf13/cobra"
)

var (
	eventsPath  string
	sourceID    string
	deriveReq   string
	deriveAsOf  string
	deriveSeed  string
	windowWeeks float64
	outPath     string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Build a forecast request from a candidate stage event log",
	Long: `Replays a JSONL stage event log (as written by mockgen or an ATS export) and derives
observed conversion rates, duration fits, the requisition's pipeline, the owner's portfolio
and an inferred capacity profile. The result is a request document for "forecast".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf := time.Now().UTC()
		if deriveAsOf != "" {
			var err error
			if asOf, err = api.ParseDate(deriveAsOf); err != nil {
				return err
			}
		}

		store := eventlog.NewEventStore()
		if eventsPath != "" {
			f, err := os.Open(eventsPath)
			if err != nil {
				return fmt.Errorf("failed to open event log: %w", err)
			}
			defer f.Close()
			if err := store.Read(sourceID, f); err != nil {
				return err
			}
		} else if err := store.Load(cfg.CacheDir, sourceID); err != nil {
			return err
		}
		if store.Count(sourceID) == 0 {
			return fmt.Errorf("no events found for source %s", sourceID)
		}

		req, err := eventlog.BuildRequest(orc.Catalog(), store.Events(sourceID, asOf), eventlog.DeriveOptions{
			ReqID:       deriveReq,
			AsOf:        asOf,
			Seed:        deriveSeed,
			WindowWeeks: windowWeeks,
		})
		if err != nil {
			return err
		}

		if outPath == "" {
			return writeJSON(cmd.OutOrStdout(), req)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer f.Close()
		return writeJSON(f, req)
	},
}

func init() {
	deriveCmd.Flags().StringVar(&eventsPath, "events", "", "JSONL event log file (default: <source>.jsonl in the cache folder)")
	deriveCmd.Flags().StringVar(&sourceID, "source", "ATSMOCK_0", "event log source ID")
	deriveCmd.Flags().StringVar(&deriveReq, "req", "", "requisition to derive the request for")
	deriveCmd.Flags().StringVar(&deriveAsOf, "as-of", "", "forecast date YYYY-MM-DD (default: today)")
	deriveCmd.Flags().StringVar(&deriveSeed, "seed", "", "seed for the derived request (default: requisition ID)")
	deriveCmd.Flags().Float64Var(&windowWeeks, "window-weeks", 12, "capacity look-back in weeks")
	deriveCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the request to this file instead of stdout")
	_ = deriveCmd.MarkFlagRequired("req")

	rootCmd.AddCommand(deriveCmd)
}
