package textextract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// extractPDF tries the Go library first, then falls back to pdftotext
// if the library cannot read the file.
func (e *Extractor) extractPDF(ctx context.Context, path string) (*Result, error) {
	var warnings []string

	text, err := pdfLibraryText(path)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("pdf library: %v", err))
		out, errb, execErr := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
		if execErr != nil {
			if len(errb) > 0 {
				warnings = append(warnings, string(errb))
			}
			return nil, fmt.Errorf("extract pdf text: %w", execErr)
		}
		text = string(out)
	}

	return &Result{
		Text:       text,
		Pages:      1 + strings.Count(text, "\f"),
		Method:     "pdf-text",
		SourceType: "pdf",
		Warnings:   warnings,
	}, nil
}

func pdfLibraryText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // form feed as page separator
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

// ExtractOCR rasterizes a PDF and recognizes each page. It is the
// retry path for scanned documents whose text layer came back empty.
func (e *Extractor) ExtractOCR(ctx context.Context, path string) (*Result, error) {
	tmpDir, err := os.MkdirTemp("", "planparse-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		if len(errb) > 0 {
			return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
		}
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	// pdftoppm pads page numbers, so a string sort keeps page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > e.cfg.MaxOCRPages {
		matches = matches[:e.cfg.MaxOCRPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	var buf strings.Builder
	var warnings []string
	recognized := 0
	for _, img := range matches {
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.TesseractLang)
		if err != nil {
			w := fmt.Sprintf("tesseract %s: %v", filepath.Base(img), err)
			if len(errb) > 0 {
				w += ": " + truncate(string(errb), 512)
			}
			warnings = append(warnings, w)
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\f\n")
		}
		buf.WriteString(string(out))
		recognized++
	}
	if recognized == 0 {
		return nil, fmt.Errorf("ocr recognized no pages: %s", strings.Join(warnings, "; "))
	}

	return &Result{
		Text:       buf.String(),
		Pages:      len(matches),
		Method:     "pdf-ocr",
		SourceType: "pdf",
		Warnings:   warnings,
	}, nil
}
