package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/gdport/pkg/rewrite"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"
	barColor    = "#478cbf"
)

// WriteHTML renders a standalone HTML page with a bar chart of rule firings summed over rows.
// Every rule gets a bar, including those that never fired.
func WriteHTML(w io.Writer, rows []Row) error {
	totals := Totals(rows)
	rules := rewrite.Rules()

	labels := make([]string, len(rules))
	data := make([]opts.BarData, len(rules))

	for idx, rule := range rules {
		labels[idx] = rule.String()
		data[idx] = opts.BarData{Value: totals.Count(rule)}
	}

	failed := 0

	for _, row := range rows {
		if row.Failed {
			failed++
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "gdport conversion report",
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Rule firings",
			Subtitle: fmt.Sprintf("%d files, %d failed, %d rewrites", len(rows), failed, totals.Total()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"},
		}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Firings", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: barColor}))

	err := bar.Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
