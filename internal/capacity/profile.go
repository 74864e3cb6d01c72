// Package capacity turns owner throughput limits into per-stage queue delay.
package capacity

import (
	"pipeline-oracle/internal/funnel"
)

// Throughput is an owner's observed weekly processing rate for one stage. Produced by the
// capacity-inference collaborator.
type Throughput struct {
	Stage               funnel.Stage      `json:"stage"`
	ThroughputPerWeek   float64           `json:"throughput_per_week"`
	WeeksAnalyzed       float64           `json:"weeks_analyzed,omitempty"`
	TransitionsObserved int               `json:"transitions_observed,omitempty"`
	Confidence          funnel.Confidence `json:"confidence,omitempty"`
}

// Profile is the read-only capacity picture for one recruiter / hiring-manager pair.
type Profile struct {
	Recruiter          []Throughput      `json:"recruiter,omitempty"`
	HM                 []Throughput      `json:"hm,omitempty"`
	CohortDefault      []Throughput      `json:"cohort_default,omitempty"`
	OverallConfidence  funnel.Confidence `json:"overall_confidence,omitempty"`
	UsedCohortFallback bool              `json:"used_cohort_fallback,omitempty"`
}

// IsAvailable reports whether the profile carries any throughput at all. A nil or empty
// profile means "no data", which is distinct from "no constraint".
func (p *Profile) IsAvailable() bool {
	if p == nil {
		return false
	}
	return len(p.Recruiter)+len(p.HM)+len(p.CohortDefault) > 0
}

func find(set []Throughput, stage funnel.Stage) (Throughput, bool) {
	for _, t := range set {
		if t.Stage == stage {
			return t, true
		}
	}
	return Throughput{}, false
}

// resolvedRate is the service rate chosen for a stage and where it came from.
type resolvedRate struct {
	perWeek    float64
	confidence funnel.Confidence
	fallback   bool
}

// resolve picks the owner's own throughput unless it is missing or LOW confidence, in which
// case the cohort default is used and flagged. Shared stages are limited by the slower party.
func (p *Profile) resolve(stage funnel.Stage, owner funnel.OwnerType) (resolvedRate, bool) {
	var own []Throughput
	switch owner {
	case funnel.OwnerRecruiter:
		if t, ok := find(p.Recruiter, stage); ok {
			own = append(own, t)
		}
	case funnel.OwnerHM:
		if t, ok := find(p.HM, stage); ok {
			own = append(own, t)
		}
	case funnel.OwnerBoth:
		if t, ok := find(p.Recruiter, stage); ok {
			own = append(own, t)
		}
		if t, ok := find(p.HM, stage); ok {
			own = append(own, t)
		}
	}

	var personal *resolvedRate
	if len(own) > 0 {
		r := resolvedRate{perWeek: own[0].ThroughputPerWeek, confidence: confidenceOf(own[0])}
		for _, t := range own[1:] {
			if t.ThroughputPerWeek < r.perWeek {
				r.perWeek = t.ThroughputPerWeek
			}
			r.confidence = funnel.MinConfidence(r.confidence, confidenceOf(t))
		}
		personal = &r
	}

	if personal != nil && personal.confidence != funnel.ConfidenceLow {
		return *personal, true
	}

	if cohort, ok := find(p.CohortDefault, stage); ok {
		return resolvedRate{perWeek: cohort.ThroughputPerWeek, confidence: funnel.ConfidenceLow, fallback: true}, true
	}

	if personal != nil {
		return *personal, true
	}
	return resolvedRate{}, false
}

// cohortRate returns the cohort-typical weekly throughput for a stage, if known.
func (p *Profile) cohortRate(stage funnel.Stage) (float64, bool) {
	if p == nil {
		return 0, false
	}
	t, ok := find(p.CohortDefault, stage)
	return t.ThroughputPerWeek, ok
}

func confidenceOf(t Throughput) funnel.Confidence {
	if t.Confidence == "" {
		return funnel.ConfidenceLow
	}
	return t.Confidence
}
