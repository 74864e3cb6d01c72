package capacity

import "math"

// DaysPerWeek converts weekly throughput into day-denominated delay.
const DaysPerWeek = 7.0

// BacklogDrainDays is the uncapped backlog-drain delay for a stage: with capacity =
// rate × horizon, demand at or below capacity waits nothing; above it the excess drains
// at the weekly rate, so delay = 7 × (demand − capacity) / rate days. A zero rate with
// any demand never drains and returns +Inf.
func BacklogDrainDays(demand, ratePerWeek, horizonWeeks float64) float64 {
	if demand <= 0 || math.IsNaN(demand) {
		return 0
	}
	if ratePerWeek <= 0 || math.IsNaN(ratePerWeek) {
		return math.Inf(1)
	}
	capacity := ratePerWeek * horizonWeeks
	if demand <= capacity {
		return 0
	}
	return DaysPerWeek * (demand - capacity) / ratePerWeek
}

// QueueDelayDays is BacklogDrainDays capped at maxDays. Below the cap it strictly
// increases with demand and decreases with rate; once saturated it stays at maxDays, so
// it is only weakly monotonic overall.
func QueueDelayDays(demand, ratePerWeek, horizonWeeks, maxDays float64) float64 {
	return math.Min(BacklogDrainDays(demand, ratePerWeek, horizonWeeks), maxDays)
}
