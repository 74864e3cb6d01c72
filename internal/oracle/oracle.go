// Package oracle composes the estimators, the simulator and the capacity engine into one
// forecast per requisition.
package oracle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
	"pipeline-oracle/internal/metrics"
	"pipeline-oracle/internal/rates"
	"pipeline-oracle/internal/recommend"
	"pipeline-oracle/internal/simulation"

	"github.com/rs/zerolog/log"
)

// Parameters are the observed per-stage statistics for a requisition.
type Parameters struct {
	StageConversionRates map[funnel.Stage]float64        `json:"stage_conversion_rates"`
	StageDurations       map[funnel.Stage]durations.Spec `json:"stage_durations,omitempty"`
	// SampleSizes uses "STAGE" keys for rate counts and "STAGE:duration" for duration counts.
	SampleSizes map[string]int `json:"sample_sizes,omitempty"`
}

// Request is one forecast question.
type Request struct {
	ReqID       string
	RecruiterID string
	HMID        string
	AsOf        time.Time
	Seed        string
	Knobs       knobs.Settings
	Params      Parameters
	Pipeline    []funnel.Candidate
	Profile     *capacity.Profile

	// Portfolio context for global demand. Candidates of the selected requisition are
	// taken from Pipeline.
	Requisitions        []demand.Requisition
	PortfolioCandidates []demand.CandidateRecord
}

// CapacityAwareForecastResult compares the pipeline-only forecast to one that includes
// per-stage queue delay.
type CapacityAwareForecastResult struct {
	PipelineOnly        simulation.Result  `json:"pipeline_only"`
	CapacityAware       *simulation.Result `json:"capacity_aware,omitempty"`
	CapacityConstrained bool               `json:"capacity_constrained"`
	P50DeltaDays        float64            `json:"p50_delta_days"`
	CapacityNote        string             `json:"capacity_note,omitempty"`
}

// Forecast is everything the oracle returns for a request.
type Forecast struct {
	ReqID             string                       `json:"req_id"`
	CacheKey          string                       `json:"cache_key"`
	Available         bool                         `json:"available"`
	UnavailableReason string                       `json:"unavailable_reason,omitempty"`
	Result            *CapacityAwareForecastResult `json:"result,omitempty"`
	PenaltyV1         capacity.PenaltyResult       `json:"penalty_v1"`
	Penalty           capacity.PenaltyResult       `json:"penalty"`
	Recommendations   []capacity.Recommendation    `json:"recommendations"`
	Confidence        funnel.Confidence            `json:"confidence"`
	ConfidenceReasons []string                     `json:"confidence_reasons"`
	Explain           Explain                      `json:"explain"`
}

// Options configures an Oracle.
type Options struct {
	Workers   int
	Penalty   capacity.Config
	Recommend recommend.Config
}

// Oracle is stateless between requests and safe for concurrent use.
type Oracle struct {
	catalog *catalog.Catalog
	sim     *simulation.Engine
	penalty *capacity.Engine
	recs    *recommend.Generator
}

// New builds an oracle over the given stage catalog.
func New(c *catalog.Catalog, opts Options) *Oracle {
	sim := simulation.NewEngine(c)
	if opts.Workers > 0 {
		sim.SetWorkers(opts.Workers)
	}
	return &Oracle{
		catalog: c,
		sim:     sim,
		penalty: capacity.NewEngine(c, opts.Penalty),
		recs:    recommend.New(opts.Recommend),
	}
}

// Catalog exposes the stage catalog the oracle was built on.
func (o *Oracle) Catalog() *catalog.Catalog {
	return o.catalog
}

// Forecast runs the full flow: rates and durations, pipeline-only simulation, demand and
// capacity penalty, capacity-aware re-simulation, recommendations and confidence.
// A forecast that cannot converge is returned with Available=false, not as an error.
func (o *Oracle) Forecast(req Request) (*Forecast, error) {
	f, err := o.forecast(req)
	switch {
	case err != nil:
		metrics.ObserveForecast(metrics.OutcomeError)
	case !f.Available:
		metrics.ObserveForecast(metrics.OutcomeUnavailable)
	default:
		metrics.ObserveForecast(metrics.OutcomeSuccess)
	}
	return f, err
}

func (o *Oracle) forecast(req Request) (*Forecast, error) {
	if err := req.Knobs.Validate(); err != nil {
		return nil, err
	}
	if req.AsOf.IsZero() {
		return nil, errors.New("as-of date is required")
	}

	rateInfos, durInfos, err := o.Estimate(req.Params, req.Knobs)
	if err != nil {
		return nil, err
	}

	f := &Forecast{
		ReqID:    req.ReqID,
		CacheKey: CacheKey(req.ReqID, req.Pipeline, req.Seed, req.Knobs),
	}

	gd := demand.Aggregate(req.ReqID, req.RecruiterID, req.HMID, o.demandRecords(req), req.Requisitions)
	f.PenaltyV1 = o.penalty.Penalize(durInfos, gd.SelectedByStage, req.Profile)
	f.Penalty = o.penalty.PenalizeV11(durInfos, gd, req.Profile)
	for _, d := range f.Penalty.TopBottlenecks {
		metrics.ObserveBottleneck(string(d.BottleneckOwnerType))
	}

	in := simulation.Input{
		Candidates: req.Pipeline,
		Rates:      rateInfos,
		Durations:  durInfos,
		Iterations: req.Knobs.Iterations,
		Seed:       req.Seed,
		AsOf:       req.AsOf,
	}

	start := time.Now()
	pipelineOnly, err := o.sim.Run(in)
	metrics.ObserveSimulation("pipeline", time.Since(start))
	switch {
	case errors.Is(err, simulation.ErrNoConvergence), errors.Is(err, simulation.ErrNoCandidates):
		f.UnavailableReason = err.Error()
		log.Info().Str("req", req.ReqID).Err(err).Msg("Forecast unavailable")
	case err != nil:
		return nil, fmt.Errorf("simulate %s: %w", req.ReqID, err)
	default:
		f.Available = true
		f.Result = &CapacityAwareForecastResult{PipelineOnly: pipelineOnly}
		if err := o.capacityAware(f, in); err != nil {
			return nil, err
		}
	}

	var simConf *simulation.Result
	if f.Result != nil {
		simConf = &f.Result.PipelineOnly
	}
	f.Confidence, f.ConfidenceReasons = AssessOverall(simConf, f.Penalty, rateInfos, durInfos, o.catalog.Controllable())

	f.Recommendations = o.recs.Generate(f.Penalty, f.Confidence)
	if f.Penalty.Portfolio != nil {
		f.Penalty.Portfolio.Recommendations = f.Recommendations
	}

	f.Explain = buildExplain(req, rateInfos, durInfos, gd, f)

	log.Info().
		Str("req", req.ReqID).
		Bool("available", f.Available).
		Str("confidence", string(f.Confidence)).
		Int("recommendations", len(f.Recommendations)).
		Msg("Forecast complete")
	return f, nil
}

// capacityAware re-runs the simulator with the same seed and the penalty's per-stage
// delays. Identical draws mean the capacity-aware fill can never be earlier.
func (o *Oracle) capacityAware(f *Forecast, in simulation.Input) error {
	if !f.Penalty.IsAvailable {
		f.Result.CapacityNote = f.Penalty.UnavailableReason
		return nil
	}
	delays := f.Penalty.StageDelays()
	if len(delays) == 0 {
		aware := f.Result.PipelineOnly
		f.Result.CapacityAware = &aware
		f.Result.CapacityNote = "No stage exceeds owner throughput"
		return nil
	}

	in.StageDelays = delays
	start := time.Now()
	aware, err := o.sim.Run(in)
	metrics.ObserveSimulation("capacity", time.Since(start))
	if err != nil {
		return fmt.Errorf("capacity-aware simulation: %w", err)
	}
	f.Result.CapacityAware = &aware
	f.Result.P50DeltaDays = math.Max(0, aware.P50Days-f.Result.PipelineOnly.P50Days)
	f.Result.CapacityConstrained = f.Result.P50DeltaDays > 0
	f.Result.CapacityNote = f.Penalty.Summary()
	return nil
}

// Estimate derives the shrunk rates and selected duration models for every stage a
// candidate can wait in.
func (o *Oracle) Estimate(p Parameters, k knobs.Settings) ([]rates.StageRateInfo, []durations.StageDurationInfo, error) {
	stages := o.catalog.Transitional()

	priors := make(map[funnel.Stage]float64, len(stages))
	for _, s := range stages {
		def, _ := o.catalog.Def(s)
		priors[s] = def.PriorRate
	}

	rateInfos, err := rates.Estimate(stages, p.StageConversionRates, p.SampleSizes, priors, k.M())
	if err != nil {
		return nil, nil, err
	}

	durInfos := make([]durations.StageDurationInfo, 0, len(stages))
	for _, s := range stages {
		spec := p.StageDurations[s]
		if spec.N == nil {
			if n, ok := p.SampleSizes[durations.SampleKey(s)]; ok {
				spec.N = &n
			}
		}
		def, _ := o.catalog.Def(s)
		info, err := durations.Select(s, spec, k.MinN(), p.SampleSizes[rates.SampleKey(s)], durations.Fallback{
			Global:       def.GlobalDuration,
			ConstantDays: def.ConstantDays,
		})
		if err != nil {
			return nil, nil, err
		}
		durInfos = append(durInfos, info)
	}
	return rateInfos, durInfos, nil
}

// demandRecords merges the selected requisition's pipeline into the portfolio records,
// replacing any portfolio rows for the same requisition.
func (o *Oracle) demandRecords(req Request) []demand.CandidateRecord {
	out := make([]demand.CandidateRecord, 0, len(req.PortfolioCandidates)+len(req.Pipeline))
	for _, c := range req.PortfolioCandidates {
		if c.ReqID != req.ReqID {
			out = append(out, c)
		}
	}
	for _, c := range req.Pipeline {
		out = append(out, demand.CandidateRecord{ID: c.ID, ReqID: req.ReqID, Stage: c.Stage})
	}
	return out
}

// Penalty computes only the v1.1 capacity penalty and its recommendations.
func (o *Oracle) Penalty(req Request) (capacity.PenaltyResult, error) {
	if err := req.Knobs.Validate(); err != nil {
		return capacity.PenaltyResult{}, err
	}
	_, durInfos, err := o.Estimate(req.Params, req.Knobs)
	if err != nil {
		return capacity.PenaltyResult{}, err
	}
	gd := demand.Aggregate(req.ReqID, req.RecruiterID, req.HMID, o.demandRecords(req), req.Requisitions)
	res := o.penalty.PenalizeV11(durInfos, gd, req.Profile)
	res.Portfolio.Recommendations = o.recs.Generate(res, res.Confidence)
	return res, nil
}

// PenaltyV1 computes the single-requisition penalty.
func (o *Oracle) PenaltyV1(req Request) (capacity.PenaltyResult, error) {
	if err := req.Knobs.Validate(); err != nil {
		return capacity.PenaltyResult{}, err
	}
	_, durInfos, err := o.Estimate(req.Params, req.Knobs)
	if err != nil {
		return capacity.PenaltyResult{}, err
	}
	byStage := make(map[funnel.Stage]int)
	for _, c := range req.Pipeline {
		if !c.Stage.IsTerminal() {
			byStage[c.Stage]++
		}
	}
	return o.penalty.Penalize(durInfos, byStage, req.Profile), nil
}
