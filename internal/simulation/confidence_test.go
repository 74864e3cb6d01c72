package simulation

import (
	"math/rand"
	"testing"

	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/rates"
)

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestAssessConfidence(t *testing.T) {
	controllable := []funnel.Stage{funnel.StageScreen, funnel.StageHMScreen, funnel.StageOnsite}

	build := func(ns []int, fitted []bool) ([]rates.StageRateInfo, []durations.StageDurationInfo) {
		var rs []rates.StageRateInfo
		var ds []durations.StageDurationInfo
		for i, s := range controllable {
			rs = append(rs, rate(s, 0.5, ns[i]))
			ds = append(ds, durations.StageDurationInfo{Stage: s, Fitted: fitted[i]})
		}
		return rs, ds
	}

	tests := []struct {
		name   string
		ns     []int
		fitted []bool
		want   funnel.Confidence
	}{
		{"AllStrong", []int{40, 35, 60}, []bool{true, true, true}, funnel.ConfidenceHigh},
		{"ModerateSamples", []int{12, 20, 25}, []bool{true, true, true}, funnel.ConfidenceMedium},
		{"OneUnfitted", []int{40, 40, 40}, []bool{true, false, true}, funnel.ConfidenceMedium},
		{"TinySample", []int{3, 40, 40}, []bool{true, true, true}, funnel.ConfidenceLow},
		{"MostlyShrunk", []int{6, 7, 40}, []bool{true, true, true}, funnel.ConfidenceLow},
		{"TwoUnfitted", []int{40, 40, 40}, []bool{false, false, true}, funnel.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, ds := build(tt.ns, tt.fitted)
			got, reasons := AssessConfidence(rs, ds, controllable)
			if got != tt.want {
				t.Errorf("AssessConfidence() = %s, want %s (reasons %v)", got, tt.want, reasons)
			}
			if len(reasons) == 0 {
				t.Error("expected at least one reason")
			}
		})
	}
}

func TestHistogram(t *testing.T) {
	samples := []float64{1.2, 1.8, 2.5, 3.1, 9.9}
	h := NewHistogram(samples, 4)

	total := 0
	for _, c := range h.Counts {
		total += c
	}
	if total != len(samples) {
		t.Errorf("expected %d samples bucketed, got %d", len(samples), total)
	}
	if len(h.Counts) > 4 {
		t.Errorf("expected at most 4 buckets, got %d", len(h.Counts))
	}
	if len(h.Labels) != len(h.Counts) {
		t.Error("labels and counts misaligned")
	}
}

func TestCalculateTailRatio(t *testing.T) {
	if got := CalculateTailRatio([]float64{2, 2, 2, 2}); got != 1 {
		t.Errorf("expected 1 for flat sample, got %v", got)
	}
	if got := CalculateTailRatio([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 10}); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}
