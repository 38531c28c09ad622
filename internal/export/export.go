// Package export renders a parse result as an XLSX workbook: one
// sheet of extracted targets plus one sheet per appendix.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
)

const targetsSheet = "Targets"

var targetHeaders = []string{
	"Section",
	"Type",
	"Name (VI)",
	"Name (EN)",
	"Unit",
	"Value",
	"Min",
	"Max",
	"Year",
	"Baseline",
	"Baseline Year",
	"Comparison",
	"Raw Text",
}

// Workbook builds the XLSX bytes for one result.
func Workbook(res *pipeline.Result, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), targetsSheet)

	if err := writeTargets(f, res); err != nil {
		return nil, err
	}

	used := map[string]bool{targetsSheet: true}
	for _, app := range res.Appendices {
		if err := writeAppendix(f, app, used); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("rendered workbook",
		"doc_id", res.DocID,
		"targets", res.TargetCount(),
		"appendices", len(res.Appendices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeTargets(f *excelize.File, res *pipeline.Result) error {
	for i, h := range targetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(targetsSheet, cell, h)
	}

	row := 2
	for _, group := range res.SectionTargets {
		for _, t := range group.Targets {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(targetsSheet, cell, v)
			}

			write(1, group.Number)
			write(2, string(t.Type))
			write(3, t.NameVi)
			write(4, t.NameEn)
			write(5, t.Unit)
			if t.Value != nil {
				write(6, *t.Value)
			}
			if t.Min != nil {
				write(7, *t.Min)
			}
			if t.Max != nil {
				write(8, *t.Max)
			}
			if t.Year != nil {
				write(9, *t.Year)
			}
			if t.BaselineValue != nil {
				write(10, *t.BaselineValue)
			}
			if t.BaselineYear != nil {
				write(11, *t.BaselineYear)
			}
			write(12, t.Metadata["comparison"])
			write(13, truncate(t.RawTextVi, 300))

			row++
		}
	}

	// Widen the text-heavy columns
	_ = f.SetColWidth(targetsSheet, "A", "A", 10) // section
	_ = f.SetColWidth(targetsSheet, "B", "B", 14) // type
	_ = f.SetColWidth(targetsSheet, "C", "C", 44) // name vi
	_ = f.SetColWidth(targetsSheet, "D", "D", 28) // name en
	_ = f.SetColWidth(targetsSheet, "E", "E", 12) // unit
	_ = f.SetColWidth(targetsSheet, "F", "K", 10) // numbers
	_ = f.SetColWidth(targetsSheet, "L", "L", 12) // comparison
	_ = f.SetColWidth(targetsSheet, "M", "M", 60) // raw text

	return nil
}

func writeAppendix(f *excelize.File, app appendix.Appendix, used map[string]bool) error {
	sheet := sheetName(app, used)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("appendix sheet %q: %w", sheet, err)
	}

	_ = f.SetCellValue(sheet, "A1", app.TitleVi)

	for i, col := range app.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, col)
	}

	rowIdx := 3
	for _, r := range app.Rows {
		for i, col := range app.Columns {
			v, ok := r.Data[col]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, v)
		}
		rowIdx++
	}

	if n := len(app.Columns); n > 0 {
		last, _ := excelize.ColumnNumberToName(n)
		_ = f.SetColWidth(sheet, "A", last, 24)
		_ = f.SetColWidth(sheet, "A", "A", 8) // ordinal column
	}
	return nil
}

// sheetName keeps names inside the 31-character workbook limit and
// unique across repeated appendix numbers.
func sheetName(app appendix.Appendix, used map[string]bool) string {
	base := fmt.Sprintf("Phụ lục %d", app.Number)
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	used[name] = true
	return name
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
