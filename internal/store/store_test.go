package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/quangtrung-dev/planparse/internal/appendix"
	"github.com/quangtrung-dev/planparse/internal/doctree"
	"github.com/quangtrung-dev/planparse/internal/pipeline"
	"github.com/quangtrung-dev/planparse/internal/target"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "planparse.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fptr(v float64) *float64 { return &v }
func iptr(n int) *int         { return &n }

// sampleResult is a small but fully populated parse: a three-level
// section tree, one target attributed to the deepest leaf, and one
// appendix with two rows.
func sampleResult(docID string) *pipeline.Result {
	return &pipeline.Result{
		DocID:            docID,
		Filename:         "nghi-quyet-01.txt",
		Title:            "Về kế hoạch phát triển kinh tế - xã hội",
		ContentHash:      "abc123",
		SourceType:       "text",
		Method:           "text_extraction",
		Status:           pipeline.StatusCompleted,
		MeaningfulLength: 1200,
		Document: &doctree.ParsedDocument{
			Preamble: "ỦY BAN NHÂN DÂN TỈNH AN GIANG",
			Sections: []*doctree.Section{
				{
					Level: doctree.LevelDieu, Number: "1", Title: "Mục tiêu", SortOrder: 1,
					Children: []*doctree.Section{
						{
							Level: doctree.LevelArabic, Number: "1", Title: "Kinh tế", SortOrder: 2,
							Children: []*doctree.Section{
								{
									Level: doctree.LevelLetter, Number: "a",
									Title:     "Tốc độ tăng trưởng GRDP bình quân đạt khoảng 7%/năm.",
									SortOrder: 3,
								},
							},
						},
					},
				},
				{
					Level: doctree.LevelDieu, Number: "2", Title: "Tổ chức thực hiện",
					Content: "Giao Ủy ban nhân dân tỉnh triển khai.", SortOrder: 4,
				},
			},
			SignatureBlock: "TM. HỘI ĐỒNG NHÂN DÂN\nCHỦ TỊCH",
		},
		SectionTargets: []pipeline.SectionTargets{
			{
				SortOrder: 3, Number: "a",
				Title: "Tốc độ tăng trưởng GRDP bình quân đạt khoảng 7%/năm.",
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
		Errors:    []string{"leaf 2: extractor unavailable"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "planparse.db")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(path, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("path = %q, want %q", s.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestSaveResult_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	res := sampleResult("doc-1")

	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadResult(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.Filename != res.Filename || got.Title != res.Title {
		t.Errorf("identity = %q/%q, want %q/%q", got.Filename, got.Title, res.Filename, res.Title)
	}
	if got.ContentHash != res.ContentHash || got.SourceType != res.SourceType || got.Method != res.Method {
		t.Errorf("provenance mismatch: %+v", got)
	}
	if got.Status != pipeline.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.MeaningfulLength != 1200 {
		t.Errorf("meaningful length = %d, want 1200", got.MeaningfulLength)
	}
	if !got.CreatedAt.Equal(res.CreatedAt) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, res.CreatedAt)
	}
	if !reflect.DeepEqual(got.Errors, res.Errors) {
		t.Errorf("errors = %v, want %v", got.Errors, res.Errors)
	}
	if !reflect.DeepEqual(got.Document, res.Document) {
		t.Errorf("document tree did not round-trip:\n got %+v\nwant %+v", got.Document, res.Document)
	}
	if !reflect.DeepEqual(got.SectionTargets, res.SectionTargets) {
		t.Errorf("section targets did not round-trip:\n got %+v\nwant %+v", got.SectionTargets, res.SectionTargets)
	}
	if !reflect.DeepEqual(got.Appendices, res.Appendices) {
		t.Errorf("appendices did not round-trip:\n got %+v\nwant %+v", got.Appendices, res.Appendices)
	}
}

func TestSaveResult_MinimalResult(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	res := &pipeline.Result{
		DocID:    "doc-min",
		Filename: "empty.txt",
		Status:   pipeline.StatusCompleted,
	}
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadResult(ctx, "doc-min")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.SectionTargets) != 0 || len(got.Appendices) != 0 {
		t.Errorf("expected empty aggregates, got %d groups, %d appendices",
			len(got.SectionTargets), len(got.Appendices))
	}
	if got.Errors != nil {
		t.Errorf("errors = %v, want nil", got.Errors)
	}
	if got.Document == nil || len(got.Document.Sections) != 0 {
		t.Errorf("document = %+v, want empty tree", got.Document)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created at should be stamped when the result carries none")
	}
}

func TestSaveResult_ReplacesPriorParse(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := sampleResult("doc-1")
	second.ContentHash = "def456"
	second.SectionTargets = nil
	if err := s.SaveResult(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.LoadResult(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Errorf("content hash = %q, want def456", got.ContentHash)
	}
	if got.TargetCount() != 0 {
		t.Errorf("target count = %d, want 0 after replacement", got.TargetCount())
	}

	// The old parse's rows are gone, not orphaned.
	for _, table := range []string{"sections", "targets", "appendices", "appendix_rows"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		switch table {
		case "sections":
			if n != 4 {
				t.Errorf("%s rows = %d, want 4", table, n)
			}
		case "targets":
			if n != 0 {
				t.Errorf("%s rows = %d, want 0", table, n)
			}
		case "appendices":
			if n != 1 {
				t.Errorf("%s rows = %d, want 1", table, n)
			}
		case "appendix_rows":
			if n != 2 {
				t.Errorf("%s rows = %d, want 2", table, n)
			}
		}
	}
}

func TestFindByContentHash(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	id, err := s.FindByContentHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want doc-1", id)
	}

	id, err = s.FindByContentHash(ctx, "no-such-hash")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty for unknown hash", id)
	}
}

func TestDeleteDocument_Cascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get err = %v, want ErrNotFound", err)
	}

	for _, table := range []string{"sections", "targets", "appendices", "appendix_rows"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s rows = %d, want 0 after cascade", table, n)
		}
	}
}

func TestDeleteThenReparse(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// After deletion the content hash is free again.
	id, err := s.FindByContentHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty after delete", id)
	}

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("reparse save: %v", err)
	}
	got, err := s.LoadResult(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TargetCount() != 1 {
		t.Errorf("target count = %d, want 1", got.TargetCount())
	}
}

func TestGetDocument_Summary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("doc-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	d, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.ID != "doc-1" || d.Filename != "nghi-quyet-01.txt" {
		t.Errorf("identity = %q/%q", d.ID, d.Filename)
	}
	if d.Status != string(pipeline.StatusCompleted) {
		t.Errorf("status = %q, want completed", d.Status)
	}
	if d.TargetCount != 1 {
		t.Errorf("target count = %d, want 1", d.TargetCount)
	}
	if d.AppendixCount != 1 {
		t.Errorf("appendix count = %d, want 1", d.AppendixCount)
	}
	if d.UpdatedAt.IsZero() {
		t.Error("updated at should be stamped")
	}
}

func TestListDocuments_NewestFirstWithPaging(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"doc-a", "doc-b", "doc-c"} {
		res := sampleResult(id)
		res.ContentHash = id // keep hashes distinct
		res.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	page, err := s.ListDocuments(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "doc-c" || page[1].ID != "doc-b" {
		t.Errorf("first page = %+v, want doc-c then doc-b", page)
	}

	page, err = s.ListDocuments(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "doc-a" {
		t.Errorf("second page = %+v, want doc-a", page)
	}
}

func TestLoadResult_MissingDocument(t *testing.T) {
	s := testStore(t)
	if _, err := s.LoadResult(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
