package oracle

import (
	"fmt"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/rates"
	"pipeline-oracle/internal/simulation"
)

// LowFillProbability caps overall confidence at MEDIUM when fewer iterations fill.
const LowFillProbability = 0.5

// AssessOverall combines the simulator's data-quality grade with the capacity penalty's.
// sim is nil when the forecast did not converge.
func AssessOverall(sim *simulation.Result, pen capacity.PenaltyResult, rateInfos []rates.StageRateInfo, durInfos []durations.StageDurationInfo, controllable []funnel.Stage) (funnel.Confidence, []string) {
	var conf funnel.Confidence
	var reasons []string

	if sim != nil {
		conf = sim.Confidence
		reasons = append(reasons, sim.ConfidenceReasons...)
		if sim.FillProbability < LowFillProbability {
			conf = funnel.MinConfidence(conf, funnel.ConfidenceMedium)
			reasons = append(reasons, fmt.Sprintf("Only %.0f%% of simulated iterations filled the requisition", sim.FillProbability*100))
		}
	} else {
		_, dataReasons := simulation.AssessConfidence(rateInfos, durInfos, controllable)
		conf = funnel.ConfidenceLow
		reasons = append(reasons, "No simulated iteration filled the requisition")
		reasons = append(reasons, dataReasons...)
	}

	if !pen.IsAvailable {
		reasons = append(reasons, "Capacity profile unavailable; recruiter and hiring-manager throughput not considered")
		return conf, reasons
	}

	conf = funnel.MinConfidence(conf, pen.Confidence)
	if pen.UsedCohortFallback {
		reasons = append(reasons, "Some stages use cohort-default throughput instead of the owner's own history")
	}
	if pen.Portfolio != nil {
		reasons = append(reasons, pen.Portfolio.DemandConfidenceReasons...)
	}
	return conf, reasons
}
