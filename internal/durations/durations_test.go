package durations

import (
	"errors"
	"math"
	"testing"
	"time"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/funnel"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

var global = &catalog.LognormalFit{Mu: 2.0, Sigma: 0.5}

func TestSelect_MinNBoundary(t *testing.T) {
	spec := Spec{Fit: &catalog.LognormalFit{Mu: 1.5, Sigma: 0.4}, N: intPtr(4)}

	tests := []struct {
		name string
		minN int
		want Kind
	}{
		{"Relaxed", 3, KindLognormal},
		{"Standard", 5, KindGlobal},
		{"Strict", 10, KindGlobal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Select(funnel.StageScreen, spec, tt.minN, 0, Fallback{Global: global})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Model != tt.want {
				t.Errorf("Model = %s, want %s", info.Model, tt.want)
			}
			if info.NSource != SourceDuration {
				t.Errorf("NSource = %s, want %s", info.NSource, SourceDuration)
			}
		})
	}
}

func TestSelect_LognormalMedian(t *testing.T) {
	spec := Spec{Fit: &catalog.LognormalFit{Mu: 1.5, Sigma: 0.4}, N: intPtr(20)}
	info, err := Select(funnel.StageScreen, spec, 5, 0, Fallback{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(info.MedianDays-math.Exp(1.5)) > 1e-12 {
		t.Errorf("median = %v, want exp(1.5)", info.MedianDays)
	}
	if !info.Fitted {
		t.Error("expected fitted model")
	}
}

func TestSelect_RateSampleFallback(t *testing.T) {
	spec := Spec{Fit: &catalog.LognormalFit{Mu: 1.5, Sigma: 0.4}}

	info, err := Select(funnel.StageScreen, spec, 5, 12, Fallback{Global: global})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NSource != SourceRate || info.N != 12 {
		t.Errorf("expected n=12 from rate samples, got n=%d source=%s", info.N, info.NSource)
	}
	if info.Model != KindLognormal {
		t.Errorf("expected lognormal, got %s", info.Model)
	}

	info, err = Select(funnel.StageScreen, spec, 5, 2, Fallback{Global: global})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != KindGlobal || info.Fitted {
		t.Errorf("expected unfitted global fallback, got %+v", info)
	}
}

func TestSelect_Constant(t *testing.T) {
	info, err := Select(funnel.StageOffer, Spec{ConstantDays: floatPtr(7)}, 5, 0, Fallback{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != KindConstant || info.MedianDays != 7 {
		t.Errorf("unexpected info %+v", info)
	}

	info, err = Select(funnel.StageOffer, Spec{}, 5, 0, Fallback{ConstantDays: floatPtr(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != KindConstant || info.MedianDays != 5 {
		t.Errorf("expected catalog constant, got %+v", info)
	}
}

func TestSelect_EmpiricalWithExclusions(t *testing.T) {
	spec := Spec{Samples: []float64{3, -2, 5, math.NaN(), 4}}
	info, err := Select(funnel.StageOnsite, spec, 5, 0, Fallback{Global: global})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != KindEmpirical {
		t.Fatalf("expected empirical, got %s", info.Model)
	}
	if info.N != 3 || info.MedianDays != 4 {
		t.Errorf("expected n=3 median=4, got n=%d median=%v", info.N, info.MedianDays)
	}
	if len(info.Exclusions) != 2 {
		t.Fatalf("expected 2 exclusions, got %+v", info.Exclusions)
	}
	reasons := map[string]bool{}
	for _, e := range info.Exclusions {
		reasons[e.Reason] = true
	}
	if !reasons[ReasonNegative] || !reasons[ReasonNotFinite] {
		t.Errorf("missing exclusion reasons: %+v", info.Exclusions)
	}
}

func TestSelect_AllSamplesExcludedFallsBack(t *testing.T) {
	info, err := Select(funnel.StageOnsite, Spec{Samples: []float64{-1, -4}}, 5, 7, Fallback{Global: global})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Model != KindGlobal {
		t.Errorf("expected global, got %s", info.Model)
	}
	if len(info.Exclusions) != 2 {
		t.Errorf("exclusions should survive fallback, got %+v", info.Exclusions)
	}
}

func TestSelect_NoModel(t *testing.T) {
	_, err := Select(funnel.StageOnsite, Spec{}, 5, 0, Fallback{})
	if !errors.Is(err, ErrNoDurationModel) {
		t.Errorf("expected ErrNoDurationModel, got %v", err)
	}
}

func TestSelect_InvalidFit(t *testing.T) {
	_, err := Select(funnel.StageOnsite, Spec{Fit: &catalog.LognormalFit{Mu: 1, Sigma: -1}}, 5, 10, Fallback{})
	if err == nil {
		t.Error("expected error for negative sigma")
	}
}

func TestFromTransitions(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	trs := []Transition{
		{CandidateID: "a", EnteredAt: base, ExitedAt: base.AddDate(0, 0, 3)},
		{CandidateID: "b", EnteredAt: base.AddDate(0, 0, 2), ExitedAt: base},
		{CandidateID: "c", EnteredAt: base},
	}

	days, excluded := FromTransitions(funnel.StageScreen, trs)
	if len(days) != 1 || days[0] != 3 {
		t.Errorf("expected [3], got %v", days)
	}
	if len(excluded) != 2 {
		t.Fatalf("expected 2 exclusions, got %+v", excluded)
	}
	if excluded[0].Reason != ReasonOutOfOrder || excluded[0].CandidateID != "b" {
		t.Errorf("unexpected first exclusion %+v", excluded[0])
	}
	if excluded[1].Reason != ReasonMissingStamp {
		t.Errorf("unexpected second exclusion %+v", excluded[1])
	}
}

func TestFitLognormal(t *testing.T) {
	e := math.E
	fit, n, ok := FitLognormal([]float64{e, e * e * e, 0, -2})
	if !ok || n != 2 {
		t.Fatalf("expected a fit over 2 values, got ok=%v n=%d", ok, n)
	}
	if math.Abs(fit.Mu-2) > 1e-9 {
		t.Errorf("mu = %v, want 2", fit.Mu)
	}
	if math.Abs(fit.Sigma-math.Sqrt2) > 1e-9 {
		t.Errorf("sigma = %v, want sqrt(2)", fit.Sigma)
	}

	if _, _, ok := FitLognormal([]float64{4}); ok {
		t.Error("a single value must not produce a fit")
	}
}
