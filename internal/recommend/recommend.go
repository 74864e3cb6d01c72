// Package recommend turns capacity bottlenecks into ranked prescriptive actions.
package recommend

import (
	"fmt"
	"math"
	"sort"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/funnel"
)

// Config tunes the impact estimates.
type Config struct {
	// ReduceDemandFactor is how many times the cohort-typical workload counts as "far exceeding".
	ReduceDemandFactor float64
	// ReassignShare is the fraction of a shared stage's demand assumed movable.
	ReassignShare float64
	// ExtraThroughput is the added weekly throughput assumed by increase_throughput.
	ExtraThroughput float64
}

// DefaultConfig returns the standard impact assumptions.
func DefaultConfig() Config {
	return Config{
		ReduceDemandFactor: 2.0,
		ReassignShare:      0.25,
		ExtraThroughput:    1.0,
	}
}

// Generator produces recommendations.
type Generator struct {
	cfg Config
}

// New creates a generator; zero fields fall back to DefaultConfig.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.ReduceDemandFactor <= 0 {
		cfg.ReduceDemandFactor = def.ReduceDemandFactor
	}
	if cfg.ReassignShare <= 0 || cfg.ReassignShare >= 1 {
		cfg.ReassignShare = def.ReassignShare
	}
	if cfg.ExtraThroughput <= 0 {
		cfg.ExtraThroughput = def.ExtraThroughput
	}
	return &Generator{cfg: cfg}
}

// Generate uses the default configuration.
func Generate(res capacity.PenaltyResult, confidence funnel.Confidence) []capacity.Recommendation {
	return New(DefaultConfig()).Generate(res, confidence)
}

var typeRank = map[capacity.RecommendationType]int{
	capacity.RecIncreaseThroughput: 0,
	capacity.RecReassignWorkload:   1,
	capacity.RecReduceDemand:       2,
	capacity.RecImproveData:        3,
}

// Generate maps every bottleneck (not only the top ones) to actions, ordered by estimated
// impact descending. Ties fall back to action type, then funnel order.
func (g *Generator) Generate(res capacity.PenaltyResult, confidence funnel.Confidence) []capacity.Recommendation {
	recs := []capacity.Recommendation{}
	stageRank := make(map[funnel.Stage]int, len(res.Stages))

	fallbackStages, computedStages := 0, 0
	for i, d := range res.Stages {
		stageRank[d.Stage] = i
		if d.NoData {
			continue
		}
		computedStages++
		if d.UsedCohortFallback {
			fallbackStages++
		}
		if !d.IsBottleneck {
			continue
		}

		switch d.BottleneckOwnerType {
		case funnel.OwnerBoth:
			remaining := float64(d.Demand) * (1 - g.cfg.ReassignShare)
			impact := gain(d, remaining, d.ServiceRate, res.HorizonWeeks)
			recs = append(recs, capacity.Recommendation{
				Type:                capacity.RecReassignWorkload,
				Stage:               d.Stage,
				Owner:               d.BottleneckOwnerType,
				Description:         fmt.Sprintf("Rebalance %s between recruiter and hiring manager: moving %.0f%% of %d candidates recovers about %.1f days", d.Stage, g.cfg.ReassignShare*100, d.Demand, impact),
				EstimatedImpactDays: impact,
			})
		default:
			impact := gain(d, float64(d.Demand), d.ServiceRate+g.cfg.ExtraThroughput, res.HorizonWeeks)
			recs = append(recs, capacity.Recommendation{
				Type:                capacity.RecIncreaseThroughput,
				Stage:               d.Stage,
				Owner:               d.BottleneckOwnerType,
				Description:         fmt.Sprintf("Add %.0f more %s per week at %s (%s): currently %.1f/week against %d candidates", g.cfg.ExtraThroughput, stageVerb(d.Stage), d.Stage, ownerLabel(d.BottleneckOwnerType), d.ServiceRate, d.Demand),
				EstimatedImpactDays: impact,
			})
		}

		if d.CohortRate > 0 {
			typical := d.CohortRate * res.HorizonWeeks
			if float64(d.Demand) >= g.cfg.ReduceDemandFactor*typical {
				impact := gain(d, typical, d.ServiceRate, res.HorizonWeeks)
				recs = append(recs, capacity.Recommendation{
					Type:                capacity.RecReduceDemand,
					Stage:               d.Stage,
					Owner:               d.BottleneckOwnerType,
					Description:         fmt.Sprintf("%s load of %d candidates is %.1fx the cohort-typical %.0f; pause sourcing or close stale requisitions", d.Stage, d.Demand, float64(d.Demand)/typical, typical),
					EstimatedImpactDays: impact,
				})
			}
		}
	}

	heavyFallback := computedStages > 0 && fallbackStages*2 >= computedStages
	switch {
	case !res.IsAvailable:
		recs = append(recs, capacity.Recommendation{
			Type:        capacity.RecImproveData,
			Description: "No capacity profile for this recruiter or hiring manager; record stage transitions so throughput can be inferred",
		})
	case confidence == funnel.ConfidenceLow || heavyFallback:
		recs = append(recs, capacity.Recommendation{
			Type:        capacity.RecImproveData,
			Description: fmt.Sprintf("Capacity estimate is low confidence (%d of %d stages on cohort defaults); more owner-level history will sharpen the forecast", fallbackStages, computedStages),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.EstimatedImpactDays != b.EstimatedImpactDays {
			return a.EstimatedImpactDays > b.EstimatedImpactDays
		}
		if typeRank[a.Type] != typeRank[b.Type] {
			return typeRank[a.Type] < typeRank[b.Type]
		}
		return stageRank[a.Stage] < stageRank[b.Stage]
	})
	return recs
}

// Top returns the first n recommendations, the slice surfaced in the UI.
func Top(recs []capacity.Recommendation, n int) []capacity.Recommendation {
	if n < 0 || len(recs) <= n {
		return recs
	}
	return recs[:n]
}

// gain is the days an action saves at a stage: the drop in uncapped backlog-drain delay
// when the stage moves to the given demand and rate, clamped to [0, QueueDelayDays]. A
// stage that drains in neither state gains nothing.
func gain(d capacity.StageDiagnostic, demand, rate, horizon float64) float64 {
	before := capacity.BacklogDrainDays(float64(d.Demand), d.ServiceRate, horizon)
	after := capacity.BacklogDrainDays(demand, rate, horizon)
	v := before - after
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, d.QueueDelayDays)
}

func ownerLabel(o funnel.OwnerType) string {
	switch o {
	case funnel.OwnerHM:
		return "hiring manager"
	case funnel.OwnerRecruiter:
		return "recruiter"
	}
	return string(o)
}

func stageVerb(s funnel.Stage) string {
	switch s {
	case funnel.StageScreen, funnel.StageHMScreen:
		return "screens"
	case funnel.StageOnsite:
		return "onsite loops"
	case funnel.StageOffer:
		return "offers"
	}
	return "reviews"
}
