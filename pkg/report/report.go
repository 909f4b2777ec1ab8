// Package report renders conversion summaries: a terminal table and an HTML chart.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/rewrite"
	"github.com/Sumatoshi-tech/gdport/pkg/scene"
)

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Row is one converted file.
type Row struct {
	Path   string
	Bytes  int
	Stats  rewrite.Stats
	Hints  int
	Failed bool
}

// FromResults builds rows from batch results, keeping their order.
func FromResults(results []convert.FileResult) []Row {
	rows := make([]Row, len(results))

	for idx, fr := range results {
		rows[idx] = Row{
			Path:   fr.Path,
			Bytes:  len(fr.Source),
			Stats:  fr.Stats,
			Hints:  len(fr.Hints),
			Failed: fr.Err != nil,
		}
	}

	return rows
}

// Totals sums rule firings over rows.
func Totals(rows []Row) rewrite.Stats {
	var total rewrite.Stats

	for _, row := range rows {
		total = total.Add(row.Stats)
	}

	return total
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

// WriteTable renders one line per file with its size, rule firings and status.
func WriteTable(w io.Writer, rows []Row) error {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"File", "Size", "Rules", "Fired", "Hints", "Status"})

	var (
		bytes  int
		hints  int
		failed int
	)

	for _, row := range rows {
		status := statusOK
		if row.Failed {
			status = statusFailed
			failed++
		}

		bytes += row.Bytes
		hints += row.Hints

		tbl.AppendRow(table.Row{
			row.Path,
			humanize.Bytes(uint64(row.Bytes)),
			row.Stats.Total(),
			firedSummary(row.Stats),
			row.Hints,
			status,
		})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(rows)),
		humanize.Bytes(uint64(bytes)),
		Totals(rows).Total(),
		"",
		hints,
		fmt.Sprintf("%d failed", failed),
	})

	tbl.Render()

	return nil
}

// firedSummary lists the rules that fired as "rule:count", most frequent first.
func firedSummary(stats rewrite.Stats) string {
	type fired struct {
		name  string
		count int
	}

	var list []fired

	for name, count := range stats.Map() {
		list = append(list, fired{name: name, count: count})
	}

	slices.SortFunc(list, func(a, b fired) int {
		if a.count != b.count {
			return b.count - a.count
		}

		return strings.Compare(a.name, b.name)
	})

	parts := make([]string, len(list))
	for idx, item := range list {
		parts[idx] = item.name + ":" + strconv.Itoa(item.count)
	}

	return strings.Join(parts, ", ")
}

// WriteSceneSummary renders document counts per section.
func WriteSceneSummary(w io.Writer, counts []scene.SectionCount) error {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Section", "Documents"})

	total := 0

	for _, sc := range counts {
		tbl.AppendRow(table.Row{sc.Section, sc.Count})
		total += sc.Count
	}

	tbl.AppendFooter(table.Row{"Total", total})
	tbl.Render()

	return nil
}
