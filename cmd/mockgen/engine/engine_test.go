package engine

import (
	"reflect"
	"testing"
	"time"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/eventlog"
	"pipeline-oracle/internal/funnel"
)

func config(scenario string) GeneratorConfig {
	return GeneratorConfig{
		Scenario:         scenario,
		Requisitions:     3,
		CandidatesPerReq: 30,
		Recruiters:       2,
		HistoryDays:      90,
		Now:              time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Seed:             7,
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	c := catalog.Default()
	a := Generate(c, config(ScenarioMild))
	b := Generate(c, config(ScenarioMild))
	if len(a) == 0 {
		t.Fatal("no events generated")
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different logs")
	}
}

func TestGenerate_ReplaysCleanly(t *testing.T) {
	c := catalog.Default()
	cfg := config(ScenarioOverloaded)
	cfg.Distribution = "weibull"

	store := eventlog.NewEventStore()
	store.Append("mock", Generate(c, cfg))
	events := store.Events("mock", time.Time{})

	for _, e := range events {
		if e.Timestamp > cfg.Now.UnixMicro() {
			t.Fatalf("event in the future: %+v", e)
		}
		if !c.Has(e.ToStage) && !e.ToStage.IsTerminal() {
			t.Fatalf("unknown stage %q", e.ToStage)
		}
	}

	residencies, states := eventlog.Replay(events, cfg.Now)
	if len(residencies) == 0 || len(states) == 0 {
		t.Fatal("replay produced nothing")
	}
	for _, r := range residencies {
		if r.ExitedAt.Before(r.EnteredAt) {
			t.Fatalf("residency exits before entry: %+v", r)
		}
		if r.To != funnel.StageRejected && r.To != funnel.StageWithdrawn && !eventlog.Passed(c, r) {
			t.Fatalf("backward move generated: %+v", r)
		}
	}
}

func TestGenerate_SparseHasFewerCandidates(t *testing.T) {
	c := catalog.Default()
	_, mild := eventlog.Replay(Generate(c, config(ScenarioMild)), time.Time{})
	_, sparse := eventlog.Replay(Generate(c, config(ScenarioSparse)), time.Time{})
	if len(sparse) >= len(mild) {
		t.Errorf("sparse scenario has %d candidates, mild %d", len(sparse), len(mild))
	}
}
