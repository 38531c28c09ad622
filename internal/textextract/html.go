package textextract

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// extractHTML keeps the raw markup for the table pipeline and derives
// a plain-text rendition for structure parsing.
func (e *Extractor) extractHTML(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	text, err := HTMLToText(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &Result{
		Text:       text,
		HTML:       string(raw),
		Pages:      1,
		Method:     "html",
		SourceType: "html",
	}, nil
}

// HTMLToText flattens markup to text, one line per block element.
// Table cells within a row are joined with tabs so downstream row
// heuristics still see them as one delimited line.
func HTMLToText(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", err
	}

	var lines []string
	var line strings.Builder

	flush := func() {
		if t := strings.TrimSpace(line.String()); t != "" {
			lines = append(lines, t)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			line.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				flush()
				return
			case "td", "th":
				// Cells stay atomic even when the exporter wraps
				// their content in block elements.
				if line.Len() > 0 {
					line.WriteString("\t")
				}
				line.WriteString(textContent(n))
				return
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "table", "section", "article":
				flush()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				flush()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	return strings.Join(lines, "\n"), nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
