package oracle

import (
	"fmt"

	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
	"pipeline-oracle/internal/rates"
	"pipeline-oracle/internal/simulation"
)

// Explain is the audit bundle behind a forecast: every input-derived number the
// simulator and the penalty engine used.
type Explain struct {
	CacheKey          string                        `json:"cache_key"`
	Knobs             knobs.Settings                `json:"knobs"`
	PriorWeight       float64                       `json:"prior_weight_m"`
	MinN              int                           `json:"min_n"`
	IterationWarning  string                        `json:"iteration_warning,omitempty"`
	Rates             []rates.StageRateInfo         `json:"rates"`
	Durations         []durations.StageDurationInfo `json:"durations"`
	Exclusions        []durations.Exclusion         `json:"exclusions,omitempty"`
	Pipeline          map[funnel.Stage]int          `json:"pipeline"`
	Demand            demand.GlobalDemand           `json:"demand"`
	PenaltySummary    string                        `json:"penalty_summary"`
	Confidence        funnel.Confidence             `json:"confidence"`
	ConfidenceReasons []string                      `json:"confidence_reasons"`
	Debug             *simulation.Debug             `json:"debug,omitempty"`
	Histogram         *simulation.Histogram         `json:"histogram,omitempty"`
	TailRatio         float64                       `json:"tail_ratio,omitempty"`
}

// HistogramBuckets bounds the fill-day histogram in the explain bundle.
const HistogramBuckets = 20

func buildExplain(req Request, rateInfos []rates.StageRateInfo, durInfos []durations.StageDurationInfo, gd demand.GlobalDemand, f *Forecast) Explain {
	e := Explain{
		CacheKey:          f.CacheKey,
		Knobs:             req.Knobs,
		PriorWeight:       req.Knobs.M(),
		MinN:              req.Knobs.MinN(),
		Rates:             rateInfos,
		Durations:         durInfos,
		Pipeline:          make(map[funnel.Stage]int),
		Demand:            gd,
		PenaltySummary:    f.Penalty.Summary(),
		Confidence:        f.Confidence,
		ConfidenceReasons: f.ConfidenceReasons,
	}
	if req.Knobs.SlowIterations() {
		e.IterationWarning = fmt.Sprintf("%d iterations requested; %d or more may be slow", req.Knobs.Iterations, knobs.WarnIterations)
	}
	for _, d := range durInfos {
		e.Exclusions = append(e.Exclusions, d.Exclusions...)
	}
	for _, c := range req.Pipeline {
		e.Pipeline[c.Stage]++
	}
	if f.Result != nil {
		po := f.Result.PipelineOnly
		e.Debug = &po.Debug
		e.Histogram = simulation.NewHistogram(po.Samples, HistogramBuckets)
		e.TailRatio = simulation.CalculateTailRatio(po.Samples)
	}
	return e
}
