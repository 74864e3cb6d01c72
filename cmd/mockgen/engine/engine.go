// Package engine generates synthetic applicant-tracking event logs for local testing.
package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/eventlog"
	"pipeline-oracle/internal/funnel"
)

// Scenarios.
const (
	ScenarioMild       = "mild"
	ScenarioOverloaded = "overloaded"
	ScenarioDrift      = "drift"
	ScenarioSparse     = "sparse"
)

type GeneratorConfig struct {
	Scenario         string
	Distribution     string // "lognormal" or "weibull"
	Requisitions     int
	CandidatesPerReq int
	Recruiters       int
	HistoryDays      int
	Now              time.Time
	Seed             int64
}

// weibullShape is used when durations are drawn from a Weibull with the catalog median.
const weibullShape = 1.5

// Generate walks synthetic candidates through the catalog funnel using its prior pass
// rates and population duration fits.
func Generate(c *catalog.Catalog, cfg GeneratorConfig) []eventlog.StageEvent {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	if cfg.Recruiters < 1 {
		cfg.Recruiters = 1
	}
	if cfg.HistoryDays < 1 {
		cfg.HistoryDays = 120
	}
	perReq := cfg.CandidatesPerReq
	if cfg.Scenario == ScenarioSparse {
		perReq = max(1, perReq/5)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	start := cfg.Now.AddDate(0, 0, -cfg.HistoryDays)
	total := cfg.Requisitions * perReq

	var events []eventlog.StageEvent
	n := 0
	for r := 0; r < cfg.Requisitions; r++ {
		reqID := fmt.Sprintf("REQ-%04d", r+1)
		recruiter := fmt.Sprintf("rec-%d", r%cfg.Recruiters+1)
		hm := fmt.Sprintf("hm-%d", r+1)

		for i := 0; i < perReq; i++ {
			n++
			arrival := start.Add(time.Duration(rng.Float64() * float64(cfg.HistoryDays) * 24 * float64(time.Hour)))
			drift := 1.0
			if cfg.Scenario == ScenarioDrift {
				drift = 1 + float64(n)/float64(total)
			}

			events = append(events, walk(c, rng, cfg, candidateMeta{
				id:        fmt.Sprintf("%s-c%03d", reqID, i+1),
				reqID:     reqID,
				recruiter: recruiter,
				hm:        hm,
			}, arrival, drift)...)
		}
	}
	return events
}

type candidateMeta struct {
	id, reqID, recruiter, hm string
}

func walk(c *catalog.Catalog, rng *rand.Rand, cfg GeneratorConfig, m candidateMeta, at time.Time, drift float64) []eventlog.StageEvent {
	emit := func(from, to funnel.Stage, ts time.Time) eventlog.StageEvent {
		return eventlog.StageEvent{
			CandidateID: m.id,
			ReqID:       m.reqID,
			RecruiterID: m.recruiter,
			HMID:        m.hm,
			EventType:   eventlog.TypeFor(from, to),
			Timestamp:   ts.UnixMicro(),
			FromStage:   from,
			ToStage:     to,
		}
	}

	if at.After(cfg.Now) {
		return nil
	}

	events := []eventlog.StageEvent{emit("", funnel.StageApplied, at)}
	stage := funnel.StageApplied
	for stage != funnel.StageHired {
		def, _ := c.Def(stage)
		days := drawDays(rng, def, cfg.Distribution) * drift
		if cfg.Scenario == ScenarioOverloaded && def.Owner != funnel.OwnerNone {
			days *= 2.5
		}

		at = at.Add(time.Duration(days * 24 * float64(time.Hour)))
		if at.After(cfg.Now) {
			break // still in stage
		}

		if rng.Float64() >= def.PriorRate {
			exit := funnel.StageRejected
			if rng.Float64() < 0.1 {
				exit = funnel.StageWithdrawn
			}
			events = append(events, emit(stage, exit, at))
			break
		}

		next, ok := c.Next(stage)
		if !ok {
			break
		}
		events = append(events, emit(stage, next, at))
		stage = next
	}
	return events
}

func drawDays(rng *rand.Rand, def catalog.StageDef, distribution string) float64 {
	if def.ConstantDays != nil {
		return *def.ConstantDays
	}
	if def.GlobalDuration == nil {
		return 1 + rng.Float64()*4
	}
	fit := *def.GlobalDuration
	if distribution == "weibull" {
		lambda := math.Exp(fit.Mu) / math.Pow(math.Ln2, 1/weibullShape)
		return weibullSample(rng, weibullShape, lambda)
	}
	return math.Exp(fit.Mu + fit.Sigma*rng.NormFloat64())
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}
