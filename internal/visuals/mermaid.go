package visuals

import (
	"fmt"
	"math"
	"strings"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/simulation"
)

func fence(body string) string {
	if body == "" {
		return ""
	}
	return "```mermaid\n" + body + "```"
}

// GenerateFillHistogram creates a Mermaid bar chart of simulated fill days.
func GenerateFillHistogram(h *simulation.Histogram) string {
	return fence(fillHistogram(h))
}

func fillHistogram(h *simulation.Histogram) string {
	if h == nil || len(h.Counts) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0
	for i, c := range h.Counts {
		labels = append(labels, fmt.Sprintf("\"%s\"", h.Labels[i]))
		values = append(values, fmt.Sprintf("%d", c))
		if c > maxVal {
			maxVal = c
		}
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Simulated Fill Day (Pipeline Only)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis \"Days from as-of (bucket %dd)\" [%s]\n", h.BucketDays, strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Iterations\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	return sb.String()
}

// GenerateForecastCone creates a Mermaid bar chart comparing the p10/p50/p90 fill days of
// the pipeline-only and capacity-aware forecasts. aware may be nil.
func GenerateForecastCone(pipelineOnly simulation.Result, aware *simulation.Result) string {
	return fence(forecastCone(pipelineOnly, aware))
}

func forecastCone(po simulation.Result, aware *simulation.Result) string {
	maxVal := po.P90Days
	if aware != nil && aware.P90Days > maxVal {
		maxVal = aware.P90Days
	}
	if maxVal == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Fill Date Cone (Days)\"\n")
	sb.WriteString("    x-axis [\"P10 (Optimistic)\", \"P50 (Coin Toss)\", \"P90 (Conservative)\"]\n")
	sb.WriteString(fmt.Sprintf("    y-axis \"Days\" 0 --> %d\n", int(math.Ceil(maxVal*1.1))))
	sb.WriteString(fmt.Sprintf("    bar [%.0f, %.0f, %.0f]\n", po.P10Days, po.P50Days, po.P90Days))
	if aware != nil {
		sb.WriteString(fmt.Sprintf("    bar [%.0f, %.0f, %.0f]\n", aware.P10Days, aware.P50Days, aware.P90Days))
	}
	return sb.String()
}

// GenerateQueueDelayChart creates a Mermaid bar chart of the per-stage capacity queue delay.
func GenerateQueueDelayChart(stages []capacity.StageDiagnostic) string {
	return fence(queueDelayChart(stages))
}

func queueDelayChart(stages []capacity.StageDiagnostic) string {
	var labels []string
	var values []string
	maxVal := 0.0
	for _, d := range stages {
		if d.NoData {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", d.Stage))
		values = append(values, fmt.Sprintf("%.1f", d.QueueDelayDays))
		maxVal = math.Max(maxVal, d.QueueDelayDays)
	}
	if len(labels) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Capacity Queue Delay by Stage\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Delay (Days)\" 0 --> %d\n", int(math.Max(1, math.Ceil(maxVal*1.2)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	return sb.String()
}

// GenerateDemandPie creates a Mermaid pie of the owner's active candidates by stage.
func GenerateDemandPie(order []funnel.Stage, byStage map[funnel.Stage]int) string {
	return fence(demandPie(order, byStage))
}

func demandPie(order []funnel.Stage, byStage map[funnel.Stage]int) string {
	var sb strings.Builder
	n := 0
	for _, s := range order {
		if c := byStage[s]; c > 0 {
			if n == 0 {
				sb.WriteString("pie title Portfolio Demand by Stage\n")
			}
			sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", s, c))
			n++
		}
	}
	return sb.String()
}
