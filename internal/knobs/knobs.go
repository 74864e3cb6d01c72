// Package knobs maps the user-facing what-if presets onto the plain numbers the
// estimators use. The core math never sees preset labels.
package knobs

import (
	"errors"
	"fmt"
)

// ErrUnknownPreset is returned for preset labels outside the defined set.
var ErrUnknownPreset = errors.New("unknown preset")

// PriorWeight is the prior-strength preset label.
type PriorWeight string

const (
	PriorWeightLow    PriorWeight = "low"
	PriorWeightMedium PriorWeight = "medium"
	PriorWeightHigh   PriorWeight = "high"
)

// MinNThreshold is the duration-model sample gate preset label.
type MinNThreshold string

const (
	MinNRelaxed  MinNThreshold = "relaxed"
	MinNStandard MinNThreshold = "standard"
	MinNStrict   MinNThreshold = "strict"
)

const (
	MinIterations     = 1000
	MaxIterations     = 10000
	WarnIterations    = 5000
	DefaultIterations = 1000
)

var priorWeights = map[PriorWeight]float64{
	PriorWeightLow:    2,
	PriorWeightMedium: 5,
	PriorWeightHigh:   10,
}

var minNThresholds = map[MinNThreshold]int{
	MinNRelaxed:  3,
	MinNStandard: 5,
	MinNStrict:   10,
}

// Settings is the validated knob combination for one forecast.
type Settings struct {
	PriorWeight   PriorWeight   `json:"prior_weight"`
	MinNThreshold MinNThreshold `json:"min_n_threshold"`
	Iterations    int           `json:"iterations"`
}

// Defaults returns {medium, standard, 1000}.
func Defaults() Settings {
	return Settings{
		PriorWeight:   PriorWeightMedium,
		MinNThreshold: MinNStandard,
		Iterations:    DefaultIterations,
	}
}

// Parse validates raw labels. Empty values take the defaults; unknown labels are rejected.
func Parse(priorWeight, minN string, iterations int) (Settings, error) {
	s := Defaults()
	if priorWeight != "" {
		s.PriorWeight = PriorWeight(priorWeight)
	}
	if minN != "" {
		s.MinNThreshold = MinNThreshold(minN)
	}
	if iterations != 0 {
		s.Iterations = iterations
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every field against the preset tables and iteration bounds.
func (s Settings) Validate() error {
	if _, ok := priorWeights[s.PriorWeight]; !ok {
		return fmt.Errorf("%w: prior weight %q (want low, medium or high)", ErrUnknownPreset, s.PriorWeight)
	}
	if _, ok := minNThresholds[s.MinNThreshold]; !ok {
		return fmt.Errorf("%w: min-N threshold %q (want relaxed, standard or strict)", ErrUnknownPreset, s.MinNThreshold)
	}
	if s.Iterations < MinIterations || s.Iterations > MaxIterations {
		return fmt.Errorf("iterations %d outside [%d, %d]", s.Iterations, MinIterations, MaxIterations)
	}
	return nil
}

// M returns the prior pseudo-count for the preset.
func (s Settings) M() float64 {
	return priorWeights[s.PriorWeight]
}

// MinN returns the minimum duration sample size for the preset.
func (s Settings) MinN() int {
	return minNThresholds[s.MinNThreshold]
}

// SlowIterations reports whether the iteration count crosses the UI responsiveness warning.
func (s Settings) SlowIterations() bool {
	return s.Iterations >= WarnIterations
}

// PriorWeightValue looks up a single preset label.
func PriorWeightValue(p PriorWeight) (float64, error) {
	v, ok := priorWeights[p]
	if !ok {
		return 0, fmt.Errorf("%w: prior weight %q", ErrUnknownPreset, p)
	}
	return v, nil
}

// MinNValue looks up a single preset label.
func MinNValue(t MinNThreshold) (int, error) {
	v, ok := minNThresholds[t]
	if !ok {
		return 0, fmt.Errorf("%w: min-N threshold %q", ErrUnknownPreset, t)
	}
	return v, nil
}

// Preset is one row of the preset tables, for listing in tool surfaces.
type Preset struct {
	Knob  string  `json:"knob"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Presets lists every preset in a stable order.
func Presets() []Preset {
	return []Preset{
		{Knob: "prior_weight", Label: string(PriorWeightLow), Value: priorWeights[PriorWeightLow]},
		{Knob: "prior_weight", Label: string(PriorWeightMedium), Value: priorWeights[PriorWeightMedium]},
		{Knob: "prior_weight", Label: string(PriorWeightHigh), Value: priorWeights[PriorWeightHigh]},
		{Knob: "min_n_threshold", Label: string(MinNRelaxed), Value: float64(minNThresholds[MinNRelaxed])},
		{Knob: "min_n_threshold", Label: string(MinNStandard), Value: float64(minNThresholds[MinNStandard])},
		{Knob: "min_n_threshold", Label: string(MinNStrict), Value: float64(minNThresholds[MinNStrict])},
	}
}
