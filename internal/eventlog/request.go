package eventlog

import (
	"errors"
	"fmt"
	"time"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/oracle"
	"pipeline-oracle/internal/rates"

	"github.com/rs/zerolog/log"
)

// ErrUnknownRequisition means the log holds no event for the requested requisition.
var ErrUnknownRequisition = errors.New("requisition not found in event log")

// DeriveOptions selects what BuildRequest derives.
type DeriveOptions struct {
	ReqID string
	AsOf  time.Time
	Seed  string
	Knobs *api.KnobsRequest
	// WindowWeeks bounds the capacity look-back; zero means 12 weeks.
	WindowWeeks float64
}

// BuildRequest derives a complete forecast request from a stage event log: observed
// conversion rates and duration fits across the whole log, the requisition's active
// pipeline, the owner portfolio and an inferred capacity profile.
func BuildRequest(c *catalog.Catalog, events []StageEvent, opts DeriveOptions) (api.ForecastRequest, error) {
	if opts.AsOf.IsZero() {
		return api.ForecastRequest{}, fmt.Errorf("as-of date is required")
	}

	residencies, states := Replay(events, opts.AsOf)

	var recruiterID, hmID string
	var latest time.Time
	found := false
	for _, st := range states {
		if st.ReqID != opts.ReqID {
			continue
		}
		found = true
		if !st.EnteredAt.Before(latest) {
			latest = st.EnteredAt
			recruiterID, hmID = st.RecruiterID, st.HMID
		}
	}
	if !found {
		return api.ForecastRequest{}, fmt.Errorf("%w: %s", ErrUnknownRequisition, opts.ReqID)
	}

	params := oracle.Parameters{
		StageConversionRates: make(map[funnel.Stage]float64),
		StageDurations:       make(map[funnel.Stage]durations.Spec),
		SampleSizes:          make(map[string]int),
	}

	observed, decided := ConversionStats(c, residencies)
	for s, r := range observed {
		params.StageConversionRates[s] = r
		params.SampleSizes[rates.SampleKey(s)] = decided[s]
	}

	days, excluded := StageDurations(c, residencies)
	if len(excluded) > 0 {
		log.Warn().Int("excluded", len(excluded)).Msg("Dropped malformed stage residencies")
	}
	for s, d := range days {
		def, _ := c.Def(s)
		if def.ConstantDays != nil {
			continue
		}
		fit, n, ok := durations.FitLognormal(d)
		if !ok {
			continue
		}
		params.StageDurations[s] = durations.Spec{Fit: &fit, N: &n}
		params.SampleSizes[durations.SampleKey(s)] = n
	}

	records, reqs := Portfolio(states)
	profile := BuildProfile(c, residencies, ProfileOptions{
		RecruiterID: recruiterID,
		HMID:        hmID,
		AsOf:        opts.AsOf,
		WindowWeeks: opts.WindowWeeks,
	})

	req := api.ForecastRequest{
		ReqID:               opts.ReqID,
		RecruiterID:         recruiterID,
		HMID:                hmID,
		AsOf:                opts.AsOf.UTC().Format(api.DateLayout),
		Seed:                opts.Seed,
		Knobs:               opts.Knobs,
		Parameters:          params,
		Pipeline:            ActiveCandidates(states, opts.ReqID),
		Requisitions:        reqs,
		PortfolioCandidates: records,
	}
	if profile.IsAvailable() {
		req.CapacityProfile = profile
	}

	log.Info().
		Str("req", opts.ReqID).
		Int("events", len(events)).
		Int("residencies", len(residencies)).
		Int("pipeline", len(req.Pipeline)).
		Int("requisitions", len(reqs)).
		Msg("Derived forecast request from event log")
	return req, nil
}
