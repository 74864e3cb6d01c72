// Package durations selects the per-stage duration distribution the simulator draws from.
package durations

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/stats"

	"github.com/rs/zerolog/log"
)

// ErrNoDurationModel is returned when a stage has neither data nor a population fallback.
var ErrNoDurationModel = errors.New("no duration model")

// Kind names the distribution family chosen for a stage.
type Kind string

const (
	KindEmpirical Kind = "empirical"
	KindLognormal Kind = "lognormal"
	KindConstant  Kind = "constant"
	KindGlobal    Kind = "global"
)

// Where the sample size used for gating came from.
const (
	SourceDuration = "duration"
	SourceRate     = "rate"
	SourceSamples  = "samples"
	SourceNone     = "none"
)

// Exclusion reasons.
const (
	ReasonNegative     = "negative_duration"
	ReasonNotFinite    = "non_finite_duration"
	ReasonOutOfOrder   = "exit_before_entry"
	ReasonMissingStamp = "missing_timestamp"
)

// Spec is the raw duration knowledge for one stage.
type Spec struct {
	Fit          *catalog.LognormalFit `json:"fit,omitempty"`
	ConstantDays *float64              `json:"constant_days,omitempty"`
	Samples      []float64             `json:"samples,omitempty"`
	N            *int                  `json:"n,omitempty"`
}

// Fallback carries the population-level knowledge for a stage.
type Fallback struct {
	Global       *catalog.LognormalFit
	ConstantDays *float64
}

// Exclusion records a data point dropped from aggregate statistics.
type Exclusion struct {
	Stage       funnel.Stage `json:"stage"`
	CandidateID string       `json:"candidate_id,omitempty"`
	Value       float64      `json:"value"`
	Reason      string       `json:"reason"`
}

// StageDurationInfo is the selected model for a stage.
type StageDurationInfo struct {
	Stage        funnel.Stage          `json:"stage"`
	Model        Kind                  `json:"model"`
	MedianDays   float64               `json:"median_days"`
	N            int                   `json:"n"`
	NSource      string                `json:"n_source"`
	Lognormal    *catalog.LognormalFit `json:"lognormal,omitempty"`
	ConstantDays *float64              `json:"constant_days,omitempty"`
	Fitted       bool                  `json:"fitted"`
	Note         string                `json:"note,omitempty"`
	Exclusions   []Exclusion           `json:"exclusions,omitempty"`

	// Samples holds the cleaned, sorted empirical durations.
	Samples []float64 `json:"-"`
}

// SampleKey is the sampleSizes key carrying the duration sample count of a stage.
func SampleKey(s funnel.Stage) string {
	return string(s) + ":duration"
}

// Select picks the duration model for a stage.
//
//   - constant when a fixed duration is known
//   - lognormal when a fit exists and n >= minN
//   - global when a fit exists but n < minN
//   - empirical when raw samples are supplied without a fit
//
// When spec.N is absent the rate sample size rateN gates the fit instead; the info's
// NSource records which count was used.
func Select(stage funnel.Stage, spec Spec, minN, rateN int, fb Fallback) (StageDurationInfo, error) {
	info := StageDurationInfo{Stage: stage, NSource: SourceNone}

	if spec.ConstantDays != nil {
		d := *spec.ConstantDays
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return info, fmt.Errorf("stage %s: invalid constant duration %v", stage, d)
		}
		info.Model = KindConstant
		info.ConstantDays = &d
		info.MedianDays = d
		info.Fitted = true
		return info, nil
	}

	if spec.Fit != nil {
		if err := checkFit(*spec.Fit); err != nil {
			return info, fmt.Errorf("stage %s: %w", stage, err)
		}
		if spec.N != nil {
			info.N = *spec.N
			info.NSource = SourceDuration
		} else {
			info.N = rateN
			info.NSource = SourceRate
		}

		if info.N >= minN {
			fit := *spec.Fit
			info.Model = KindLognormal
			info.Lognormal = &fit
			info.MedianDays = math.Exp(fit.Mu)
			info.Fitted = true
			return info, nil
		}

		if fb.Global != nil {
			global := *fb.Global
			info.Model = KindGlobal
			info.Lognormal = &global
			info.MedianDays = math.Exp(global.Mu)
			info.Note = fmt.Sprintf("n=%d below min-N %d; using population fit", info.N, minN)
			log.Debug().Str("stage", string(stage)).Int("n", info.N).Int("minN", minN).Msg("Duration fit below threshold, falling back to global")
			return info, nil
		}

		fit := *spec.Fit
		info.Model = KindLognormal
		info.Lognormal = &fit
		info.MedianDays = math.Exp(fit.Mu)
		info.Note = fmt.Sprintf("n=%d below min-N %d and no population fit; using sparse stage fit", info.N, minN)
		return info, nil
	}

	if len(spec.Samples) > 0 {
		clean, excluded := CleanSamples(stage, spec.Samples)
		info.Exclusions = excluded
		if len(clean) > 0 {
			info.Model = KindEmpirical
			info.Samples = clean
			info.N = len(clean)
			info.NSource = SourceSamples
			info.MedianDays = stats.CalculateMedianContinuous(clean)
			info.Fitted = true
			return info, nil
		}
		log.Warn().Str("stage", string(stage)).Int("excluded", len(excluded)).Msg("All duration samples excluded")
	}

	switch {
	case fb.ConstantDays != nil:
		d := *fb.ConstantDays
		info.Model = KindConstant
		info.ConstantDays = &d
		info.MedianDays = d
		info.Fitted = true
		return info, nil
	case fb.Global != nil:
		global := *fb.Global
		info.Model = KindGlobal
		info.Lognormal = &global
		info.MedianDays = math.Exp(global.Mu)
		info.N = rateN
		info.NSource = SourceRate
		info.Note = "no stage duration data; using population fit"
		return info, nil
	}

	return info, fmt.Errorf("%w for stage %s", ErrNoDurationModel, stage)
}

// CleanSamples drops negative and non-finite durations, returning the kept values sorted.
func CleanSamples(stage funnel.Stage, samples []float64) ([]float64, []Exclusion) {
	clean := make([]float64, 0, len(samples))
	var excluded []Exclusion
	for _, v := range samples {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			excluded = append(excluded, Exclusion{Stage: stage, Value: v, Reason: ReasonNotFinite})
		case v < 0:
			excluded = append(excluded, Exclusion{Stage: stage, Value: v, Reason: ReasonNegative})
		default:
			clean = append(clean, v)
		}
	}
	slices.Sort(clean)
	return clean, excluded
}

// Transition is one candidate's residency in a stage.
type Transition struct {
	CandidateID string    `json:"candidate_id"`
	EnteredAt   time.Time `json:"entered_at"`
	ExitedAt    time.Time `json:"exited_at"`
}

// FromTransitions converts stage residencies into durations in days. Residencies with a
// missing timestamp or an exit before the entry are excluded with a reason.
func FromTransitions(stage funnel.Stage, transitions []Transition) ([]float64, []Exclusion) {
	days := make([]float64, 0, len(transitions))
	var excluded []Exclusion
	for _, tr := range transitions {
		if tr.EnteredAt.IsZero() || tr.ExitedAt.IsZero() {
			excluded = append(excluded, Exclusion{Stage: stage, CandidateID: tr.CandidateID, Reason: ReasonMissingStamp})
			continue
		}
		d := tr.ExitedAt.Sub(tr.EnteredAt).Hours() / 24.0
		if d < 0 {
			excluded = append(excluded, Exclusion{Stage: stage, CandidateID: tr.CandidateID, Value: d, Reason: ReasonOutOfOrder})
			continue
		}
		days = append(days, d)
	}
	return days, excluded
}

func checkFit(f catalog.LognormalFit) error {
	if math.IsNaN(f.Mu) || math.IsInf(f.Mu, 0) {
		return fmt.Errorf("invalid lognormal mu %v", f.Mu)
	}
	if f.Sigma < 0 || math.IsNaN(f.Sigma) || math.IsInf(f.Sigma, 0) {
		return fmt.Errorf("invalid lognormal sigma %v", f.Sigma)
	}
	return nil
}

// FitLognormal estimates a lognormal fit from positive durations by the moments of their
// logs. Non-positive values are ignored; at least two positive values are required.
func FitLognormal(days []float64) (catalog.LognormalFit, int, bool) {
	var logs []float64
	for _, d := range days {
		if d > 0 && !math.IsInf(d, 0) {
			logs = append(logs, math.Log(d))
		}
	}
	n := len(logs)
	if n < 2 {
		return catalog.LognormalFit{}, n, false
	}

	var sum float64
	for _, l := range logs {
		sum += l
	}
	mu := sum / float64(n)

	var ss float64
	for _, l := range logs {
		ss += (l - mu) * (l - mu)
	}
	return catalog.LognormalFit{Mu: mu, Sigma: math.Sqrt(ss / float64(n-1))}, n, true
}
