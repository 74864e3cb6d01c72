package simulation

import (
	"fmt"

	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/rates"
)

const (
	lowSampleFloor  = 5
	highSampleFloor = 30
)

// AssessConfidence grades a forecast from its inputs rather than its variance: the smallest
// rate sample across controllable stages, how many of them lean on shrinkage, and how many
// lack a fitted duration model.
func AssessConfidence(rateInfos []rates.StageRateInfo, durInfos []durations.StageDurationInfo, controllable []funnel.Stage) (funnel.Confidence, []string) {
	if len(controllable) == 0 {
		return funnel.ConfidenceLow, []string{"No controllable stages configured"}
	}

	rateByStage := make(map[funnel.Stage]rates.StageRateInfo, len(rateInfos))
	for _, r := range rateInfos {
		rateByStage[r.Stage] = r
	}
	durByStage := make(map[funnel.Stage]durations.StageDurationInfo, len(durInfos))
	for _, d := range durInfos {
		durByStage[d.Stage] = d
	}

	minSample := -1
	shrinkage := 0
	unfitted := 0
	for _, s := range controllable {
		n := rateByStage[s].N
		if minSample < 0 || n < minSample {
			minSample = n
		}
		if n < rates.ShrinkageThreshold {
			shrinkage++
		}
		if d, ok := durByStage[s]; !ok || !d.Fitted {
			unfitted++
		}
	}

	var reasons []string
	if minSample < lowSampleFloor {
		reasons = append(reasons, fmt.Sprintf("Smallest stage sample is %d (< %d)", minSample, lowSampleFloor))
	}
	if minSample >= lowSampleFloor && minSample < highSampleFloor {
		reasons = append(reasons, fmt.Sprintf("Smallest stage sample is %d (< %d for HIGH)", minSample, highSampleFloor))
	}
	if shrinkage > 0 {
		reasons = append(reasons, fmt.Sprintf("%d of %d stages rely on prior shrinkage (n < %d)", shrinkage, len(controllable), rates.ShrinkageThreshold))
	}
	if unfitted > 0 {
		reasons = append(reasons, fmt.Sprintf("%d stages lack a fitted duration model", unfitted))
	}

	switch {
	case minSample < lowSampleFloor || unfitted >= 2 || shrinkage*2 > len(controllable):
		return funnel.ConfidenceLow, reasons
	case minSample >= highSampleFloor && shrinkage == 0 && unfitted == 0:
		return funnel.ConfidenceHigh, []string{fmt.Sprintf("All stages have at least %d samples and fitted durations", highSampleFloor)}
	default:
		return funnel.ConfidenceMedium, reasons
	}
}
