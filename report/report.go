// Package report renders engine results as an XLSX workbook with three
// sheets: Summary (one row per engine), Top (the aggregate rows) and Timings
// (one row per engine phase).
package report

import (
	"fmt"

	"github.com/darianmavgo/tabbench/engines"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	TopSheet     = "Top"
	TimingsSheet = "Timings"
)

// Run describes the invocation the results belong to.
type Run struct {
	Mode     string
	FileType string
	Baseline string // engine the speedups are relative to; empty for none
}

// Speedup returns how many times faster res ran than base. ok is false when
// either run has no timings or either engine was unavailable.
func Speedup(base, res *engines.Result) (float64, bool) {
	if base == nil || res == nil || base.Status != engines.StatusOK || res.Status != engines.StatusOK {
		return 0, false
	}
	if base.Total() <= 0 || res.Total() <= 0 {
		return 0, false
	}
	return base.Total().Seconds() / res.Total().Seconds(), true
}

// Write saves the workbook for results at path.
func Write(path string, run Run, results []*engines.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	for _, name := range []string{TopSheet, TimingsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("report: create sheet %s: %w", name, err)
		}
	}

	var base *engines.Result
	for _, r := range results {
		if r.Engine == run.Baseline {
			base = r
		}
	}

	summary := [][]any{{"Mode", "File type", "Engine", "Status", "Rows", "Exported rows", "Export file", "Total seconds", "Speedup", "Note"}}
	top := [][]any{{"Engine", "Rank", "Name", "Avg age", "Max age", "Count"}}
	timings := [][]any{{"Engine", "Phase", "Seconds"}}

	for _, r := range results {
		var speedup any = ""
		if s, ok := Speedup(base, r); ok && r != base {
			speedup = s
		}
		note := ""
		if r.Unavailable != nil {
			note = r.Unavailable.Error()
		}
		summary = append(summary, []any{run.Mode, run.FileType, r.Engine, string(r.Status), r.RowCount, r.ExportedRows, r.ExportedFile, r.Total().Seconds(), speedup, note})

		for i, g := range r.Top {
			top = append(top, []any{r.Engine, i + 1, g.Name, g.AvgAge, g.MaxAge, g.Count})
		}
		for _, t := range r.Timings {
			timings = append(timings, []any{r.Engine, t.Phase, t.Elapsed.Seconds()})
		}
	}

	for sheet, rows := range map[string][][]any{SummarySheet: summary, TopSheet: top, TimingsSheet: timings} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
