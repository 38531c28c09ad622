// Package textextract turns uploaded documents into plain text, with
// an HTML rendition kept alongside when the source format has one.
package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result is the outcome of one extraction.
type Result struct {
	Text       string
	HTML       string // set when a faithful HTML rendition exists
	Pages      int
	Method     string // "text", "csv", "markdown", "html", "docx", "pdf-text", "pdf-ocr"
	SourceType string
	Warnings   []string
}

// Config names the external binaries used for PDF fallbacks and OCR.
type Config struct {
	Pdftotext     string // defaults to "pdftotext"
	Pdftoppm      string // defaults to "pdftoppm"
	Tesseract     string // defaults to "tesseract"
	TesseractLang string // defaults to "vie"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxOCRPages   int    // cap on OCR'd pages, default 20
}

// Extractor converts files by extension. External commands go through
// the Runner so tests can stub them.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "vie"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxOCRPages <= 0 {
		cfg.MaxOCRPages = 20
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// UnsupportedTypeError marks a file the pipeline cannot ingest.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file extension: %s", e.Ext)
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e.logger.Debug("extracting text", "path", path, "ext", ext)
	switch ext {
	case ".txt":
		return e.extractPlain(path, "text")
	case ".csv":
		return e.extractCSV(path)
	case ".md", ".markdown":
		return e.extractMarkdown(path)
	case ".html", ".htm":
		return e.extractHTML(path)
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".docx":
		return e.extractDocx(path)
	default:
		return nil, &UnsupportedTypeError{Ext: ext}
	}
}

func (e *Extractor) extractPlain(path, method string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return &Result{
		Text:       text,
		Pages:      1,
		Method:     method,
		SourceType: method,
	}, nil
}

// Capabilities reports which external binaries are on PATH. The
// pipeline uses it to decide whether an OCR retry is even possible.
type Capabilities struct {
	Pdftotext bool
	Pdftoppm  bool
	Tesseract bool
}

// OCRAvailable reports whether the full rasterize-and-recognize chain
// can run.
func (c Capabilities) OCRAvailable() bool {
	return c.Pdftoppm && c.Tesseract
}

// ProbeCapabilities looks the configured binaries up on PATH.
func (e *Extractor) ProbeCapabilities() Capabilities {
	has := func(name string) bool {
		_, err := exec.LookPath(name)
		return err == nil
	}
	caps := Capabilities{
		Pdftotext: has(e.cfg.Pdftotext),
		Pdftoppm:  has(e.cfg.Pdftoppm),
		Tesseract: has(e.cfg.Tesseract),
	}
	e.logger.Debug("probed ocr capabilities",
		"pdftotext", caps.Pdftotext,
		"pdftoppm", caps.Pdftoppm,
		"tesseract", caps.Tesseract,
	)
	return caps
}
