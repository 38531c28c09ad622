package textextract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubRunner fakes the external binaries. pdftoppm materializes page
// images, tesseract recognizes them by name, pdftotext returns a
// fixed text layer.
type stubRunner struct {
	pages    int
	failPage string
	calls    []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= s.pages; i++ {
			path := fmt.Sprintf("%s-%02d.png", prefix, i)
			if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		img := filepath.Base(args[0])
		if s.failPage != "" && img == s.failPage {
			return nil, []byte("empty page"), fmt.Errorf("exit status 1")
		}
		return []byte("Trang " + img), nil, nil
	case "pdftotext":
		return []byte("Điều 1. Phê duyệt Quy hoạch tỉnh."), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %q", name)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsSupportedExtension(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"quyet-dinh.pdf", true},
		{"nghi-quyet.DOCX", true},
		{"phu-luc.html", true},
		{"ke-hoach.txt", true},
		{"bang.csv", true},
		{"ghi-chu.md", true},
		{"anh-chup.jpg", false},
		{"van-ban.doc", false},
	}
	for _, tc := range cases {
		if got := IsSupportedExtension(tc.filename); got != tc.want {
			t.Errorf("IsSupportedExtension(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	_, err := e.Extract(context.Background(), "scan.jpg")
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedTypeError", err)
	}
	if unsupported.Ext != ".jpg" {
		t.Errorf("Ext = %q, want .jpg", unsupported.Ext)
	}
}

func TestExtract_PlainTextNormalizesLineEndings(t *testing.T) {
	path := writeFile(t, "nghi-quyet.txt", "Điều 1. Phê duyệt.\r\nXong.\r\n")
	e := NewExtractor(Config{}, nil)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Điều 1. Phê duyệt.\nXong.\n" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Method != "text" || res.SourceType != "text" || res.Pages != 1 {
		t.Errorf("meta = (%s, %s, %d)", res.Method, res.SourceType, res.Pages)
	}
}

func TestExtract_CSVBecomesTabbedLines(t *testing.T) {
	path := writeFile(t, "chi-tieu.csv", "TT,Chỉ tiêu,Giá trị\n1,Tỷ lệ che phủ rừng,42\n")
	e := NewExtractor(Config{}, nil)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "TT\tChỉ tiêu\tGiá trị\n1\tTỷ lệ che phủ rừng\t42"
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if res.Method != "csv" {
		t.Errorf("Method = %q, want csv", res.Method)
	}
}

func TestExtract_HTMLKeepsMarkupAndFlattensText(t *testing.T) {
	page := `<html><body>
<p>Điều 1. Phê duyệt.</p>
<table><tr><td><p>TT</p></td><td><p>Tên dự án</p></td></tr></table>
</body></html>`
	path := writeFile(t, "quyet-dinh.html", page)
	e := NewExtractor(Config{}, nil)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.HTML != page {
		t.Errorf("HTML not preserved verbatim")
	}
	if !strings.Contains(res.Text, "Điều 1. Phê duyệt.") {
		t.Errorf("Text missing paragraph: %q", res.Text)
	}
	// Cells wrapped in block elements must still come out as one
	// tab-delimited row.
	if !strings.Contains(res.Text, "TT\tTên dự án") {
		t.Errorf("Text missing tabbed row: %q", res.Text)
	}
}

func TestExtract_MarkdownKeepsNumberingInText(t *testing.T) {
	src := "Điều 1. Phê duyệt quy hoạch.\n\n1. Mục tiêu tổng quát đến năm 2030.\n\nPHỤ LỤC I\n\n| TT | Tên dự án |\n| --- | --- |\n| 1 | Cao tốc Châu Đốc |\n"
	path := writeFile(t, "nghi-quyet.md", src)
	e := NewExtractor(Config{}, nil)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// List rendering would eat the "1." marker, so the text rendition
	// stays the raw source.
	if !strings.Contains(res.Text, "1. Mục tiêu tổng quát") {
		t.Errorf("Text lost numbering: %q", res.Text)
	}
	if !strings.Contains(res.HTML, "<table>") {
		t.Errorf("HTML rendition lacks a table: %q", res.HTML)
	}
}

func TestExtract_PDFFallsBackToPdftotext(t *testing.T) {
	path := writeFile(t, "scan.pdf", "not really a pdf")
	stub := &stubRunner{}
	e := NewExtractor(Config{}, nil)
	e.runner = stub

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Điều 1. Phê duyệt Quy hoạch tỉnh." {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Method != "pdf-text" || res.SourceType != "pdf" {
		t.Errorf("meta = (%s, %s)", res.Method, res.SourceType)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "pdf library") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if len(stub.calls) != 1 || stub.calls[0] != "pdftotext" {
		t.Errorf("calls = %v, want [pdftotext]", stub.calls)
	}
}

func TestExtractOCR_JoinsPagesAndCapsCount(t *testing.T) {
	path := writeFile(t, "scan.pdf", "not really a pdf")
	stub := &stubRunner{pages: 3}
	e := NewExtractor(Config{MaxOCRPages: 2}, nil)
	e.runner = stub

	res, err := e.ExtractOCR(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractOCR: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2 (capped)", res.Pages)
	}
	if res.Method != "pdf-ocr" {
		t.Errorf("Method = %q, want pdf-ocr", res.Method)
	}
	parts := strings.Split(res.Text, "\n\f\n")
	if len(parts) != 2 {
		t.Fatalf("page chunks = %d, want 2: %q", len(parts), res.Text)
	}
	if !strings.Contains(parts[0], "page-01.png") || !strings.Contains(parts[1], "page-02.png") {
		t.Errorf("pages out of order: %q", res.Text)
	}
}

func TestExtractOCR_FailedPageBecomesWarning(t *testing.T) {
	path := writeFile(t, "scan.pdf", "not really a pdf")
	stub := &stubRunner{pages: 2, failPage: "page-01.png"}
	e := NewExtractor(Config{}, nil)
	e.runner = stub

	res, err := e.ExtractOCR(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractOCR: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "page-01.png") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if !strings.Contains(res.Text, "page-02.png") {
		t.Errorf("Text = %q, want surviving page", res.Text)
	}
}

func TestProbeCapabilities_MissingBinaries(t *testing.T) {
	e := NewExtractor(Config{
		Pdftotext: "planparse-test-no-such-binary",
		Pdftoppm:  "planparse-test-no-such-binary",
		Tesseract: "planparse-test-no-such-binary",
	}, nil)

	caps := e.ProbeCapabilities()
	if caps.Pdftotext || caps.Pdftoppm || caps.Tesseract {
		t.Errorf("caps = %+v, want all false", caps)
	}
	if caps.OCRAvailable() {
		t.Error("OCRAvailable() = true, want false")
	}
}
