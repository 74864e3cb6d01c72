package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"pipeline-oracle/cmd/mockgen/engine"
	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/eventlog"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, overloaded, drift, sparse")
	distribution := flag.String("distribution", "lognormal", "Duration distribution: lognormal, weibull")
	outDir := flag.String("out", "./.cache", "Output directory for the event log")
	source := flag.String("source", "ATSMOCK_0", "Source ID (file name) of the event log")
	reqs := flag.Int("reqs", 6, "Number of requisitions")
	candidates := flag.Int("candidates", 40, "Candidates per requisition")
	recruiters := flag.Int("recruiters", 2, "Number of recruiters sharing the requisitions")
	days := flag.Int("days", 120, "Days of history to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:         *scenario,
		Distribution:     *distribution,
		Requisitions:     *reqs,
		CandidatesPerReq: *candidates,
		Recruiters:       *recruiters,
		HistoryDays:      *days,
		Now:              time.Now().UTC(),
		Seed:             *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, %d reqs x %d candidates) to %s...\n",
		cfg.Scenario, cfg.Distribution, cfg.Requisitions, cfg.CandidatesPerReq, *outDir)

	store := eventlog.NewEventStore()
	store.Append(*source, engine.Generate(catalog.Default(), cfg))
	if err := store.Save(*outDir, *source); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d events.\n", store.Count(*source))
}
