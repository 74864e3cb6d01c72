package capacity

import (
	"fmt"
	"math"
	"testing"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/funnel"
)

func newEngine() *Engine {
	return NewEngine(catalog.Default(), Config{})
}

func tp(stage funnel.Stage, perWeek float64, conf funnel.Confidence) Throughput {
	return Throughput{Stage: stage, ThroughputPerWeek: perWeek, WeeksAnalyzed: 12, TransitionsObserved: 40, Confidence: conf}
}

func fullProfile() *Profile {
	return &Profile{
		Recruiter: []Throughput{
			tp(funnel.StageScreen, 5, funnel.ConfidenceHigh),
			tp(funnel.StageOnsite, 4, funnel.ConfidenceHigh),
			tp(funnel.StageDebrief, 6, funnel.ConfidenceHigh),
			tp(funnel.StageOffer, 3, funnel.ConfidenceHigh),
		},
		HM: []Throughput{
			tp(funnel.StageHMScreen, 4, funnel.ConfidenceHigh),
			tp(funnel.StageDebrief, 5, funnel.ConfidenceMedium),
		},
		OverallConfidence: funnel.ConfidenceHigh,
	}
}

func findStage(t *testing.T, res PenaltyResult, stage funnel.Stage) StageDiagnostic {
	t.Helper()
	for _, d := range res.Stages {
		if d.Stage == stage {
			return d
		}
	}
	t.Fatalf("stage %s missing from result", stage)
	return StageDiagnostic{}
}

func TestQueueDelayDays(t *testing.T) {
	tests := []struct {
		name    string
		demand  float64
		rate    float64
		horizon float64
		want    float64
	}{
		{"NoDemand", 0, 5, 1, 0},
		{"BelowCapacity", 3, 5, 1, 0},
		{"AtCapacity", 5, 5, 1, 0},
		{"Overloaded", 20, 5, 1, 21},
		{"LongerHorizon", 20, 5, 4, 0},
		{"ZeroRate", 2, 0, 1, 180},
		{"Capped", 10000, 1, 1, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueueDelayDays(tt.demand, tt.rate, tt.horizon, 180); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("QueueDelayDays() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueueDelayDays_Monotonic(t *testing.T) {
	prev := -1.0
	for d := 0.0; d <= 40; d++ {
		cur := QueueDelayDays(d, 5, 1, 180)
		if cur < prev || cur < 0 {
			t.Fatalf("delay not monotonic in demand at %v: %v < %v", d, cur, prev)
		}
		prev = cur
	}

	prev = math.Inf(1)
	for r := 0.0; r <= 25; r += 0.5 {
		cur := QueueDelayDays(20, r, 1, 180)
		if cur > prev {
			t.Fatalf("delay not decreasing in rate at %v: %v > %v", r, cur, prev)
		}
		prev = cur
	}
}

func TestBacklogDrainDays(t *testing.T) {
	tests := []struct {
		name   string
		demand float64
		rate   float64
		want   float64
	}{
		{"NoDemand", 0, 0, 0},
		{"AtCapacity", 5, 5, 0},
		{"BeyondCap", 60, 1, 413},
		{"FarBeyondCap", 10000, 1, 69993},
		{"ZeroRate", 2, 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BacklogDrainDays(tt.demand, tt.rate, 1)
			if got != tt.want && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BacklogDrainDays() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueueDelayDays_FlatOnlyAtCap(t *testing.T) {
	prev := 0.0
	for d := 6.0; d <= 40; d++ {
		cur := QueueDelayDays(d, 1, 1, 180)
		if cur < 180 && cur <= prev {
			t.Fatalf("delay must strictly increase below the cap at %v: %v <= %v", d, cur, prev)
		}
		if cur >= 180 && cur != 180 {
			t.Fatalf("delay must hold at the cap at %v, got %v", d, cur)
		}
		prev = cur
	}
}

func TestPenalize_NoBacklog(t *testing.T) {
	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 3}, fullProfile())

	if !res.IsAvailable || res.Version != VersionV1 {
		t.Fatalf("unexpected result header %+v", res)
	}
	if d := findStage(t, res, funnel.StageScreen); d.QueueDelayDays != 0 || d.IsBottleneck {
		t.Errorf("expected no delay, got %+v", d)
	}
	if len(res.TopBottlenecks) != 0 {
		t.Errorf("expected no bottlenecks, got %+v", res.TopBottlenecks)
	}
	if res.TotalQueueDelayDays != 0 {
		t.Errorf("expected zero total, got %v", res.TotalQueueDelayDays)
	}
}

func TestPenalize_RecruiterBottleneck(t *testing.T) {
	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 20}, fullProfile())

	d := findStage(t, res, funnel.StageScreen)
	if d.QueueDelayDays <= 0 || !d.IsBottleneck {
		t.Fatalf("expected SCREEN bottleneck, got %+v", d)
	}
	if len(res.TopBottlenecks) != 1 || res.TopBottlenecks[0].Stage != funnel.StageScreen {
		t.Fatalf("expected SCREEN in top bottlenecks, got %+v", res.TopBottlenecks)
	}
	if res.TopBottlenecks[0].BottleneckOwnerType != funnel.OwnerRecruiter {
		t.Errorf("expected recruiter attribution, got %s", res.TopBottlenecks[0].BottleneckOwnerType)
	}
	if res.Confidence != funnel.ConfidenceHigh {
		t.Errorf("expected HIGH confidence, got %s", res.Confidence)
	}
}

func TestPenalize_HMBottleneck(t *testing.T) {
	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageHMScreen: 15}, fullProfile())

	d := findStage(t, res, funnel.StageHMScreen)
	if !d.IsBottleneck || d.BottleneckOwnerType != funnel.OwnerHM {
		t.Errorf("expected hm bottleneck, got %+v", d)
	}
}

func TestPenalize_SharedStageUsesSlowerParty(t *testing.T) {
	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageDebrief: 10}, fullProfile())

	d := findStage(t, res, funnel.StageDebrief)
	if d.ServiceRate != 5 {
		t.Errorf("expected the slower HM rate 5, got %v", d.ServiceRate)
	}
	if d.BottleneckOwnerType != funnel.OwnerBoth {
		t.Errorf("expected both, got %s", d.BottleneckOwnerType)
	}
	if d.Confidence != funnel.ConfidenceMedium {
		t.Errorf("expected MEDIUM from the weaker grade, got %s", d.Confidence)
	}
}

func TestPenalize_TopBottlenecksSortedAndTruncated(t *testing.T) {
	load := map[funnel.Stage]int{
		funnel.StageScreen:   9,  // 5/wk -> 5.6 days
		funnel.StageHMScreen: 15, // 4/wk -> 19.25 days
		funnel.StageOnsite:   10, // 4/wk -> 10.5 days
		funnel.StageDebrief:  8,  // 5/wk -> 4.2 days
		funnel.StageOffer:    5,  // 3/wk -> 4.67 days
	}
	res := newEngine().Penalize(nil, load, fullProfile())

	if len(res.TopBottlenecks) != DefaultTopN {
		t.Fatalf("expected %d bottlenecks, got %d", DefaultTopN, len(res.TopBottlenecks))
	}
	for i := 1; i < len(res.TopBottlenecks); i++ {
		if res.TopBottlenecks[i].QueueDelayDays >= res.TopBottlenecks[i-1].QueueDelayDays {
			t.Errorf("top bottlenecks not strictly descending: %+v", res.TopBottlenecks)
		}
	}
	if res.TopBottlenecks[0].Stage != funnel.StageHMScreen {
		t.Errorf("expected HM_SCREEN first, got %s", res.TopBottlenecks[0].Stage)
	}

	sum := 0.0
	for _, d := range res.Stages {
		sum += d.QueueDelayDays
	}
	if math.Abs(sum-res.TotalQueueDelayDays) > 1e-9 {
		t.Errorf("total %v != sum of stages %v", res.TotalQueueDelayDays, sum)
	}
	top := 0.0
	for _, d := range res.TopBottlenecks {
		top += d.QueueDelayDays
	}
	if res.TotalQueueDelayDays <= top {
		t.Error("total must include stages beyond the top list")
	}
}

func TestPenalize_ZeroThroughput(t *testing.T) {
	p := fullProfile()
	p.Recruiter[0] = tp(funnel.StageScreen, 0, funnel.ConfidenceHigh)

	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 2}, p)
	d := findStage(t, res, funnel.StageScreen)
	if !d.IsBottleneck || d.QueueDelayDays != DefaultMaxDelayDays {
		t.Errorf("expected maximal delay, got %+v", d)
	}
	if math.IsNaN(res.TotalQueueDelayDays) || math.IsInf(res.TotalQueueDelayDays, 0) {
		t.Errorf("total must be finite, got %v", res.TotalQueueDelayDays)
	}
}

func TestPenalize_Unavailable(t *testing.T) {
	for name, p := range map[string]*Profile{"Nil": nil, "Empty": {}} {
		t.Run(name, func(t *testing.T) {
			res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 20}, p)
			if res.IsAvailable {
				t.Error("expected unavailable result")
			}
			if res.UnavailableReason == "" {
				t.Error("expected a reason")
			}
			if len(res.Stages) != 0 {
				t.Error("no stages should be computed without data")
			}
		})
	}
}

func TestPenalize_CohortFallback(t *testing.T) {
	p := &Profile{
		Recruiter: []Throughput{tp(funnel.StageScreen, 10, funnel.ConfidenceLow)},
		CohortDefault: []Throughput{
			tp(funnel.StageScreen, 4, funnel.ConfidenceHigh),
			tp(funnel.StageHMScreen, 3, funnel.ConfidenceHigh),
		},
		OverallConfidence: funnel.ConfidenceMedium,
	}

	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 12}, p)
	d := findStage(t, res, funnel.StageScreen)
	if !d.UsedCohortFallback || d.ServiceRate != 4 {
		t.Errorf("expected cohort rate 4 with fallback flag, got %+v", d)
	}
	if !res.UsedCohortFallback {
		t.Error("result must signal cohort fallback")
	}
	if res.Confidence != funnel.ConfidenceLow {
		t.Errorf("fallback-only contribution must be LOW, got %s", res.Confidence)
	}

	onsite := findStage(t, res, funnel.StageOnsite)
	if !onsite.NoData || onsite.IsBottleneck {
		t.Errorf("expected ONSITE without data, got %+v", onsite)
	}
}

func TestPenalizeV11_PortfolioChangesBottleneck(t *testing.T) {
	e := newEngine()
	gd := demand.GlobalDemand{
		Scope:            demand.ScopeGlobalByRecruiter,
		OwnerID:          "rec-1",
		SelectedByStage:  map[funnel.Stage]int{funnel.StageScreen: 2, funnel.StageHMScreen: 6},
		PortfolioByStage: map[funnel.Stage]int{funnel.StageScreen: 30, funnel.StageHMScreen: 6},
		Confidence:       funnel.ConfidenceHigh,
	}

	v1 := e.Penalize(nil, gd.SelectedByStage, fullProfile())
	v11 := e.PenalizeV11(nil, gd, fullProfile())

	if v1.TopBottlenecks[0].Stage != funnel.StageHMScreen {
		t.Errorf("v1 should flag HM_SCREEN first, got %s", v1.TopBottlenecks[0].Stage)
	}
	if v11.TopBottlenecks[0].Stage != funnel.StageScreen {
		t.Errorf("v1.1 should flag SCREEN first, got %s", v11.TopBottlenecks[0].Stage)
	}
	if v11.Version != VersionV11 || v11.Portfolio == nil {
		t.Fatalf("expected v1.1 extension, got %+v", v11)
	}
	if v11.Portfolio.SelectedReqByStage[funnel.StageScreen] != 2 {
		t.Error("selected requisition breakdown lost")
	}
	if v1.Portfolio != nil {
		t.Error("v1 must not carry the portfolio extension")
	}
}

func TestPenalizeV11_ChargesStageOwner(t *testing.T) {
	reqs := []demand.Requisition{
		{ID: "R1", RecruiterID: "rec", HMID: "hmA"},
		{ID: "R2", RecruiterID: "rec", HMID: "hmB"},
		{ID: "R3", RecruiterID: "rec", HMID: "hmC"},
	}
	var candidates []demand.CandidateRecord
	for _, r := range reqs {
		for i := 0; i < 4; i++ {
			candidates = append(candidates,
				demand.CandidateRecord{ID: fmt.Sprintf("%s-hm-%d", r.ID, i), ReqID: r.ID, Stage: funnel.StageHMScreen},
				demand.CandidateRecord{ID: fmt.Sprintf("%s-os-%d", r.ID, i), ReqID: r.ID, Stage: funnel.StageOnsite},
			)
		}
	}
	gd := demand.Aggregate("R1", "rec", "hmA", candidates, reqs)
	res := newEngine().PenalizeV11(nil, gd, fullProfile())

	tests := []struct {
		name       string
		stage      funnel.Stage
		demand     int
		bottleneck bool
	}{
		// hmA owns 4 HM_SCREEN candidates against 4/week.
		{"HMStageWithinCapacity", funnel.StageHMScreen, 4, false},
		// The recruiter carries all 12 onsites against 4/week.
		{"RecruiterStageSeesPortfolio", funnel.StageOnsite, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := findStage(t, res, tt.stage)
			if d.Demand != tt.demand || d.IsBottleneck != tt.bottleneck {
				t.Errorf("%s: demand=%d bottleneck=%v, want demand=%d bottleneck=%v", tt.stage, d.Demand, d.IsBottleneck, tt.demand, tt.bottleneck)
			}
		})
	}

	if res.Portfolio.DemandScope != demand.ScopeGlobalByRecruiter {
		t.Errorf("scope label should stay recruiter, got %s", res.Portfolio.DemandScope)
	}
	if res.Portfolio.PortfolioByStage[funnel.StageHMScreen] != 12 {
		t.Errorf("recruiter portfolio should still be reported, got %v", res.Portfolio.PortfolioByStage)
	}
	if res.Portfolio.OwnerDemandByStage[funnel.StageHMScreen] != 4 {
		t.Errorf("owner demand should charge hmA only, got %v", res.Portfolio.OwnerDemandByStage)
	}
}

func TestPenalizeV11_DemandConfidenceCaps(t *testing.T) {
	gd := demand.GlobalDemand{
		Scope:            demand.ScopeSingleReq,
		SelectedByStage:  map[funnel.Stage]int{funnel.StageScreen: 20},
		PortfolioByStage: map[funnel.Stage]int{funnel.StageScreen: 20},
		Confidence:       funnel.ConfidenceLow,
	}
	res := newEngine().PenalizeV11(nil, gd, fullProfile())
	if res.Confidence != funnel.ConfidenceLow {
		t.Errorf("single_req demand must cap confidence at LOW, got %s", res.Confidence)
	}
}

func TestStageDelays(t *testing.T) {
	res := newEngine().Penalize(nil, map[funnel.Stage]int{funnel.StageScreen: 20, funnel.StageHMScreen: 1}, fullProfile())
	delays := res.StageDelays()
	if len(delays) != 1 || delays[funnel.StageScreen] != 21 {
		t.Errorf("unexpected delays %v", delays)
	}
}
