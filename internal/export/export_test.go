package export

import (
	"bytes"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
	"github.com/quangtrung-dev/planparse/internal/target"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fptr(v float64) *float64 { return &v }
func iptr(n int) *int         { return &n }

func exportFixture() *pipeline.Result {
	return &pipeline.Result{
		DocID: "doc-1",
		SectionTargets: []pipeline.SectionTargets{
			{
				SortOrder: 3, Number: "a",
				Targets: []target.Target{
					{
						Type:      target.Quantitative,
						NameVi:    "Tốc độ tăng trưởng GRDP bình quân",
						Unit:      "%/năm",
						Value:     fptr(7),
						Year:      iptr(2030),
						RawTextVi: "Tốc độ tăng trưởng GRDP bình quân đạt khoảng 7%/năm.",
						Metadata:  map[string]string{"comparison": "approx"},
					},
				},
			},
			{
				SortOrder: 4, Number: "b",
				Targets: []target.Target{
					{
						Type:   target.Quantitative,
						NameVi: "Tỷ lệ đô thị hóa",
						Unit:   "%",
						Min:    fptr(50),
					},
				},
			},
		},
		Appendices: []appendix.Appendix{
			{
				Number: 1, TitleVi: "DANH MỤC DỰ ÁN TRỌNG ĐIỂM", Type: appendix.ProjectList,
				Columns: []string{"TT", "Tên dự án", "Tổng mức đầu tư"},
				Rows: []appendix.Row{
					{RowNumber: 1, SortOrder: 1, Data: map[string]any{
						"TT": float64(1), "Tên dự án": "Tuyến nối Quốc lộ 91", "Tổng mức đầu tư": float64(1500),
					}},
					{RowNumber: 2, SortOrder: 2, Data: map[string]any{
						"TT": float64(2), "Tên dự án": "Cầu Tôn Đức Thắng",
					}},
				},
			},
		},
	}
}

func openWorkbook(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	if err != nil {
		t.Fatalf("cell %s!%s: %v", sheet, ref, err)
	}
	return v
}

func TestWorkbook_TargetsSheet(t *testing.T) {
	b, err := Workbook(exportFixture(), discardLogger())
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	f := openWorkbook(t, b)

	want := []string{"Targets", "Phụ lục 1"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}

	if got := cell(t, f, "Targets", "A1"); got != "Section" {
		t.Errorf("header A1 = %q", got)
	}
	if got := cell(t, f, "Targets", "C2"); got != "Tốc độ tăng trưởng GRDP bình quân" {
		t.Errorf("name C2 = %q", got)
	}
	if got := cell(t, f, "Targets", "F2"); got != "7" {
		t.Errorf("value F2 = %q, want 7", got)
	}
	if got := cell(t, f, "Targets", "I2"); got != "2030" {
		t.Errorf("year I2 = %q, want 2030", got)
	}
	if got := cell(t, f, "Targets", "L2"); got != "approx" {
		t.Errorf("comparison L2 = %q", got)
	}

	// Second target row: min set, value empty.
	if got := cell(t, f, "Targets", "A3"); got != "b" {
		t.Errorf("section A3 = %q", got)
	}
	if got := cell(t, f, "Targets", "F3"); got != "" {
		t.Errorf("value F3 = %q, want empty", got)
	}
	if got := cell(t, f, "Targets", "G3"); got != "50" {
		t.Errorf("min G3 = %q, want 50", got)
	}
}

func TestWorkbook_AppendixSheet(t *testing.T) {
	b, err := Workbook(exportFixture(), discardLogger())
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	f := openWorkbook(t, b)

	const sheet = "Phụ lục 1"
	if got := cell(t, f, sheet, "A1"); got != "DANH MỤC DỰ ÁN TRỌNG ĐIỂM" {
		t.Errorf("title A1 = %q", got)
	}
	if got := cell(t, f, sheet, "B2"); got != "Tên dự án" {
		t.Errorf("header B2 = %q", got)
	}
	if got := cell(t, f, sheet, "B3"); got != "Tuyến nối Quốc lộ 91" {
		t.Errorf("data B3 = %q", got)
	}
	if got := cell(t, f, sheet, "C3"); got != "1500" {
		t.Errorf("data C3 = %q, want 1500", got)
	}
	// Second row has no investment figure.
	if got := cell(t, f, sheet, "C4"); got != "" {
		t.Errorf("data C4 = %q, want empty", got)
	}
}

func TestWorkbook_EmptyResult(t *testing.T) {
	b, err := Workbook(&pipeline.Result{DocID: "doc-empty"}, discardLogger())
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	f := openWorkbook(t, b)

	if got := f.GetSheetList(); len(got) != 1 || got[0] != "Targets" {
		t.Errorf("sheets = %v, want just Targets", got)
	}
	if got := cell(t, f, "Targets", "M1"); got != "Raw Text" {
		t.Errorf("last header = %q", got)
	}
}

func TestSheetName_DisambiguatesDuplicates(t *testing.T) {
	used := map[string]bool{}
	a := sheetName(appendix.Appendix{Number: 1}, used)
	b := sheetName(appendix.Appendix{Number: 1}, used)
	if a != "Phụ lục 1" || b != "Phụ lục 1 (2)" {
		t.Errorf("names = %q, %q", a, b)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := truncate("đạt mức tăng trưởng", 5); got != "đạt …" {
		t.Errorf("got %q", got)
	}
	if got := truncate("short", 300); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("unbounded", 0); got != "unbounded" {
		t.Errorf("got %q", got)
	}
}
