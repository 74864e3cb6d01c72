// Package rates blends sparse observed stage pass rates with priors.
package rates

import (
	"errors"
	"fmt"
	"math"

	"pipeline-oracle/internal/funnel"

	"github.com/rs/zerolog/log"
)

// ErrInvalidInput flags rates outside [0,1], negative sample sizes or a non-positive prior weight.
var ErrInvalidInput = errors.New("invalid rate input")

// ShrinkageThreshold is the sample size below which a stage counts as relying on its prior.
const ShrinkageThreshold = 10

// StageRateInfo explains how a stage's pass rate was derived.
type StageRateInfo struct {
	Stage       funnel.Stage `json:"stage"`
	Observed    float64      `json:"observed"`
	HasObserved bool         `json:"has_observed"`
	Prior       float64      `json:"prior"`
	PriorWeight float64      `json:"prior_weight"`
	Shrunk      float64      `json:"shrunk"`
	N           int          `json:"n"`
	Shrinkage   bool         `json:"uses_shrinkage"`
}

// Shrink returns (n·observed + m·prior)/(n+m). With n = 0 the prior is returned unchanged.
// Callers validate inputs; see Estimate.
func Shrink(observed, prior float64, n int, m float64) float64 {
	if n <= 0 {
		return prior
	}
	w := float64(n)
	v := (w*observed + m*prior) / (w + m)
	return math.Min(1, math.Max(0, v))
}

// SampleKey is the sampleSizes key carrying the rate sample count of a stage.
func SampleKey(s funnel.Stage) string {
	return string(s)
}

// Estimate computes a StageRateInfo for every stage in order. Stages without an observed
// rate fall back to their prior with n = 0.
func Estimate(stages []funnel.Stage, observed map[funnel.Stage]float64, sampleSizes map[string]int, priors map[funnel.Stage]float64, m float64) ([]StageRateInfo, error) {
	if m <= 0 || math.IsNaN(m) {
		return nil, fmt.Errorf("%w: prior weight must be > 0, got %v", ErrInvalidInput, m)
	}

	out := make([]StageRateInfo, 0, len(stages))
	for _, s := range stages {
		prior, ok := priors[s]
		if !ok {
			return nil, fmt.Errorf("%w: no prior rate for stage %s", ErrInvalidInput, s)
		}
		if !inUnit(prior) {
			return nil, fmt.Errorf("%w: prior %v for stage %s outside [0,1]", ErrInvalidInput, prior, s)
		}

		info := StageRateInfo{Stage: s, Prior: prior, PriorWeight: m}
		if o, ok := observed[s]; ok {
			if !inUnit(o) {
				return nil, fmt.Errorf("%w: observed rate %v for stage %s outside [0,1]", ErrInvalidInput, o, s)
			}
			n := sampleSizes[SampleKey(s)]
			if n < 0 {
				return nil, fmt.Errorf("%w: negative sample size %d for stage %s", ErrInvalidInput, n, s)
			}
			info.Observed = o
			info.HasObserved = true
			info.N = n
		} else {
			info.Observed = prior
			log.Debug().Str("stage", string(s)).Msg("No observed rate, using prior")
		}

		info.Shrunk = Shrink(info.Observed, prior, info.N, m)
		info.Shrinkage = info.N < ShrinkageThreshold
		out = append(out, info)
	}
	return out, nil
}

// ByStage indexes shrunk rates for the simulator.
func ByStage(infos []StageRateInfo) map[funnel.Stage]float64 {
	out := make(map[funnel.Stage]float64, len(infos))
	for _, info := range infos {
		out[info.Stage] = info.Shrunk
	}
	return out
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
