package visuals

import (
	"bytes"
	"fmt"
	"html/template"
	"os"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/oracle"
)

// Report is the data behind the HTML explain page.
type Report struct {
	View   api.ForecastView
	Fcst   *oracle.Forecast
	Charts []string
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Forecast {{.View.ReqID}}</title>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 960px; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.muted { color: #777; }
</style>
</head>
<body>
<h1>Requisition {{.View.ReqID}}</h1>
<p class="muted">cache key {{.View.CacheKey}}</p>
{{if .View.Available}}
<table>
<tr><th></th><th>P10</th><th>P50</th><th>P90</th><th>Fill probability</th></tr>
{{with .View.PipelineOnly}}<tr><td>Pipeline only</td><td>{{.P10Date}}</td><td>{{.P50Date}}</td><td>{{.P90Date}}</td><td>{{.FillProbability}}</td></tr>{{end}}
{{with .View.CapacityAware}}<tr><td>Capacity aware</td><td>{{.P10Date}}</td><td>{{.P50Date}}</td><td>{{.P90Date}}</td><td>{{.FillProbability}}</td></tr>{{end}}
</table>
<p>P50 delay from capacity: <b>{{.View.P50DeltaDays}} days</b>. {{.View.CapacityNote}}</p>
{{else}}
<p><b>Forecast unavailable:</b> {{.View.UnavailableReason}}</p>
{{end}}
<h2>Confidence: {{.View.Confidence}}</h2>
<ul>{{range .View.ConfidenceReasons}}<li>{{.}}</li>{{end}}</ul>
{{if .View.IterationWarning}}<p class="muted">{{.View.IterationWarning}}</p>{{end}}
<h2>Recommendations</h2>
<ol>{{range .View.Recommendations}}<li><b>{{.Type}}</b> {{.Description}} <span class="muted">(~{{printf "%.1f" .EstimatedImpactDays}} days)</span></li>{{else}}<li>None</li>{{end}}</ol>
<h2>Stage inputs</h2>
<table>
<tr><th>Stage</th><th>Observed</th><th>Prior</th><th>Shrunk</th><th>n</th><th>Duration model</th><th>Median days</th></tr>
{{range $i, $r := .Fcst.Explain.Rates}}{{with index $.Fcst.Explain.Durations $i}}<tr><td>{{$r.Stage}}</td><td>{{printf "%.2f" $r.Observed}}</td><td>{{printf "%.2f" $r.Prior}}</td><td>{{printf "%.3f" $r.Shrunk}}</td><td>{{$r.N}}</td><td>{{.Model}}</td><td>{{printf "%.1f" .MedianDays}}</td></tr>{{end}}{{end}}
</table>
{{range .Charts}}<pre class="mermaid">
{{.}}</pre>
{{end}}
</body>
</html>
`))

// NewReport assembles the charts for a forecast. order is the catalog stage order.
func NewReport(f *oracle.Forecast, order []funnel.Stage) Report {
	r := Report{View: api.ViewOf(f, api.DefaultTopRecommendations), Fcst: f}
	add := func(chart string) {
		if chart != "" {
			r.Charts = append(r.Charts, chart)
		}
	}
	if f.Result != nil {
		add(forecastCone(f.Result.PipelineOnly, f.Result.CapacityAware))
	}
	add(fillHistogram(f.Explain.Histogram))
	add(queueDelayChart(f.Penalty.Stages))
	if f.Penalty.Portfolio != nil {
		add(demandPie(order, f.Penalty.Portfolio.PortfolioByStage))
	}
	return r
}

// RenderHTML renders the report page.
func (r Report) RenderHTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the report to path.
func (r Report) WriteHTML(path string) error {
	out, err := r.RenderHTML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// Markdown returns the fenced Mermaid charts for tool responses.
func (r Report) Markdown() map[string]string {
	out := make(map[string]string)
	if f := r.Fcst; f != nil {
		if f.Result != nil {
			out["visual_forecast_cone"] = GenerateForecastCone(f.Result.PipelineOnly, f.Result.CapacityAware)
		}
		out["visual_fill_histogram"] = GenerateFillHistogram(f.Explain.Histogram)
		out["visual_queue_delay"] = GenerateQueueDelayChart(f.Penalty.Stages)
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}
