package render

import (
	"fmt"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/liveedit/pkg/engine"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
)

const (
	reportTitle  = "Live-edit analysis"
	chartWidth   = "100%"
	chartHeight  = "420px"
	xAxisRotate  = 30
	pieRadius    = "60%"
	blockingHue  = "#ee6666"
	infoHue      = "#fac858"
	editsHue     = "#91cc75"
	stackedGroup = "diagnostics"
)

// HTML writes a self-contained report page with one bar chart of
// diagnostics and edits per document and one pie chart of diagnostic kinds.
func (p *Printer) HTML(result *engine.Result) error {
	page := components.NewPage()
	page.PageTitle = reportTitle

	page.AddCharts(documentsChart(result), kindsChart(result))

	err := page.Render(p.writer)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

func documentsChart(result *engine.Result) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Documents",
			Subtitle: fmt.Sprintf("%d blocked, %d edits", blockedCount(result), len(result.Edits())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate}}),
	)

	labels := make([]string, 0, len(result.Documents))
	blocking := make([]opts.BarData, 0, len(result.Documents))
	informational := make([]opts.BarData, 0, len(result.Documents))
	edits := make([]opts.BarData, 0, len(result.Documents))

	for _, doc := range result.Documents {
		labels = append(labels, fmt.Sprintf("%s [%s]", doc.Document, doc.State))

		blockingCount, infoCount := countSeverities(doc.Diagnostics)
		blocking = append(blocking, opts.BarData{Value: blockingCount})
		informational = append(informational, opts.BarData{Value: infoCount})
		edits = append(edits, opts.BarData{Value: len(doc.Edits)})
	}

	stacked := charts.WithBarChartOpts(opts.BarChart{Stack: stackedGroup})

	bar.SetXAxis(labels).
		AddSeries("Blocking", blocking, stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: blockingHue})).
		AddSeries("Informational", informational, stacked, charts.WithItemStyleOpts(opts.ItemStyle{Color: infoHue})).
		AddSeries("Edits", edits, charts.WithItemStyleOpts(opts.ItemStyle{Color: editsHue}))

	return bar
}

func kindsChart(result *engine.Result) *charts.Pie {
	counts := make(map[rudeedit.Kind]int)

	for _, diag := range result.Diagnostics() {
		counts[diag.Kind]++
	}

	kinds := make([]rudeedit.Kind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return counts[kinds[i]] > counts[kinds[j]] })

	data := make([]opts.PieData, 0, len(kinds))
	for _, kind := range kinds {
		data = append(data, opts.PieData{Name: kind.String(), Value: counts[kind]})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Rude edit kinds", Subtitle: fmt.Sprintf("%d diagnostics", len(result.Diagnostics()))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	pie.AddSeries("Kinds", data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
			charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
		)

	return pie
}

func blockedCount(result *engine.Result) int {
	var blocked int

	for _, doc := range result.Documents {
		if doc.State == engine.Blocked {
			blocked++
		}
	}

	return blocked
}
