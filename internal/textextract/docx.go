package textextract

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// extractDocx flattens a .docx body to paragraph lines. Heading
// detection is left to the structure parser, which reads the
// Vietnamese numbering off the text itself.
func (e *Extractor) extractDocx(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := paragraphText(it); text != "" {
				lines = append(lines, text)
			}
		case *docx.Table:
			for _, row := range tableLines(it) {
				lines = append(lines, row)
			}
		}
	}

	return &Result{
		Text:       strings.Join(lines, "\n"),
		Pages:      1,
		Method:     "docx",
		SourceType: "docx",
	}, nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// tableLines renders a docx table as tab-separated lines so the
// appendix parser's row heuristic can pick them up.
func tableLines(table *docx.Table) []string {
	var lines []string
	for _, row := range table.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var buf strings.Builder
			for _, para := range cell.Paragraphs {
				if text := paragraphText(para); text != "" {
					if buf.Len() > 0 {
						buf.WriteString(" ")
					}
					buf.WriteString(text)
				}
			}
			cells = append(cells, buf.String())
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, "\t"))
		}
	}
	return lines
}
