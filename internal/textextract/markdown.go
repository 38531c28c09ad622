package textextract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// extractMarkdown keeps the raw source as the text rendition: the
// Vietnamese numbering ("1.", "a)") that the structure parser reads
// would be swallowed by list rendering. The HTML rendition is built
// with goldmark so pipe tables become real <table> elements for the
// table pipeline.
func (e *Extractor) extractMarkdown(path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	return &Result{
		Text:       strings.ReplaceAll(string(src), "\r\n", "\n"),
		HTML:       buf.String(),
		Pages:      1,
		Method:     "markdown",
		SourceType: "markdown",
	}, nil
}
