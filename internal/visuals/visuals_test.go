package visuals

import (
	"strings"
	"testing"
	"time"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
	"pipeline-oracle/internal/oracle"
	"pipeline-oracle/internal/simulation"
)

func TestGenerateFillHistogram(t *testing.T) {
	if got := GenerateFillHistogram(nil); got != "" {
		t.Errorf("expected empty chart, got %q", got)
	}
	h := simulation.NewHistogram([]float64{3, 4, 4, 9}, 10)
	chart := GenerateFillHistogram(h)
	if !strings.HasPrefix(chart, "```mermaid\nxychart-beta\n") || !strings.HasSuffix(chart, "```") {
		t.Errorf("not a fenced xychart: %q", chart)
	}
	if !strings.Contains(chart, "bar [") {
		t.Error("missing bar series")
	}
}

func TestGenerateQueueDelayChart_SkipsNoData(t *testing.T) {
	stages := []capacity.StageDiagnostic{
		{Stage: funnel.StageScreen, QueueDelayDays: 14},
		{Stage: funnel.StageOnsite, NoData: true},
	}
	chart := GenerateQueueDelayChart(stages)
	if strings.Contains(chart, "ONSITE") {
		t.Error("no-data stage should be omitted")
	}
	if !strings.Contains(chart, "\"SCREEN\"") || !strings.Contains(chart, "14.0") {
		t.Errorf("unexpected chart %q", chart)
	}
	if GenerateQueueDelayChart(nil) != "" {
		t.Error("expected empty chart without stages")
	}
}

func TestGenerateDemandPie_FunnelOrder(t *testing.T) {
	order := catalog.Default().Order()
	pie := GenerateDemandPie(order, map[funnel.Stage]int{funnel.StageOnsite: 2, funnel.StageScreen: 5})
	if strings.Index(pie, "SCREEN") > strings.Index(pie, "ONSITE") {
		t.Errorf("slices not in funnel order: %q", pie)
	}
	if GenerateDemandPie(order, nil) != "" {
		t.Error("expected empty pie")
	}
}

func TestReport_RenderHTML(t *testing.T) {
	c := catalog.Default()
	two := 2.0
	params := oracle.Parameters{
		StageConversionRates: map[funnel.Stage]float64{},
		StageDurations:       map[funnel.Stage]durations.Spec{},
		SampleSizes:          map[string]int{},
	}
	for _, s := range c.Transitional() {
		params.StageConversionRates[s] = 0.9
		params.SampleSizes[string(s)] = 40
		params.StageDurations[s] = durations.Spec{ConstantDays: &two}
	}
	f, err := oracle.New(c, oracle.Options{}).Forecast(oracle.Request{
		ReqID:    "REQ-<7>",
		AsOf:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Seed:     "s",
		Knobs:    knobs.Defaults(),
		Params:   params,
		Pipeline: []funnel.Candidate{{ID: "a", Stage: funnel.StageScreen}, {ID: "b", Stage: funnel.StageOnsite}},
		Profile: &capacity.Profile{
			Recruiter: []capacity.Throughput{{Stage: funnel.StageScreen, ThroughputPerWeek: 0.5, Confidence: funnel.ConfidenceHigh}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReport(f, c.Order())
	out, err := r.RenderHTML()
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	if !strings.Contains(html, "REQ-&lt;7&gt;") {
		t.Error("requisition id should be HTML-escaped")
	}
	if !strings.Contains(html, `<pre class="mermaid">`) {
		t.Error("expected mermaid blocks")
	}
	if strings.Contains(html, "```") {
		t.Error("HTML charts must not carry markdown fences")
	}
	if md := r.Markdown(); md["visual_forecast_cone"] == "" || md["visual_queue_delay"] == "" {
		t.Errorf("missing markdown charts: %v", md)
	}
}
