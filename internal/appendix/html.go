package appendix

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var innerSpaceRe = regexp.MustCompile(`\s+`)

// FromHTML runs the HTML pipeline. Headers are located in the
// document's text flow and every <table> is assigned to the nearest
// preceding header. Tables under the same header merge into one
// appendix: a repeated header row is dropped, anything else is
// appended positionally under the first table's columns, and row
// numbering stays contiguous across the merge.
func FromHTML(r io.Reader) ([]Appendix, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Appendix
	var cur *builder
	ordinal := 0

	flush := func() {
		if cur != nil {
			out = append(out, cur.finish())
			cur = nil
		}
	}

	for _, it := range flattenHTML(doc) {
		if it.text != "" {
			if id, hasID, rest, ok := matchHeader(it.text); ok {
				flush()
				ordinal++
				cur = &builder{}
				if hasID {
					cur.ap.Number = id
				} else {
					cur.ap.Number = ordinal
				}
				cur.titleOpen = true
				if rest != "" {
					cur.addTitle(rest)
				}
				continue
			}
			if cur != nil && cur.titleOpen {
				if isTableRow(it.text) {
					cur.titleOpen = false
				} else {
					cur.addTitle(it.text)
				}
			}
			continue
		}
		if cur == nil {
			continue // table with no preceding appendix header
		}
		cur.addTable(it)
	}
	flush()
	return out, nil
}

// builder accumulates one appendix while walking the document flow.
type builder struct {
	ap        Appendix
	titles    []string
	excerpt   string
	titleOpen bool
}

func (b *builder) addTitle(line string) {
	if len(b.titles) < maxTitleLines {
		b.titles = append(b.titles, line)
	}
}

func (b *builder) addTable(it flowItem) {
	b.titleOpen = false
	rows := it.rows
	if len(rows) == 0 {
		return
	}
	if b.excerpt == "" {
		b.excerpt = strings.Join(rows[0], " ")
	}

	start := 0
	if b.ap.Columns == nil {
		if it.th || len(rows) > 1 {
			b.ap.Columns = make([]string, len(rows[0]))
			for i, c := range rows[0] {
				b.ap.Columns[i] = columnName(c, i)
			}
			start = 1
		} else {
			// A single anonymous row carries data, not headers.
			b.ap.Columns = make([]string, len(rows[0]))
			for i := range rows[0] {
				b.ap.Columns[i] = fmt.Sprintf("Column_%d", i+1)
			}
		}
	} else if sameColumns(rows[0], b.ap.Columns) {
		start = 1 // continuation table repeating the header row
	}

	for _, cells := range rows[start:] {
		n := len(b.ap.Rows) + 1
		b.ap.Rows = append(b.ap.Rows, buildRow(cells, b.ap.Columns, n))
	}
}

func (b *builder) finish() Appendix {
	b.ap.TitleVi = strings.Join(b.titles, " ")
	b.ap.Type = classify(b.ap.TitleVi, b.excerpt)
	return b.ap
}

func sameColumns(cells, columns []string) bool {
	if len(cells) != len(columns) {
		return false
	}
	for i, c := range cells {
		if columnName(c, i) != columns[i] {
			return false
		}
	}
	return true
}

// flowItem is one unit of document flow: a text line or a table.
type flowItem struct {
	text string
	rows [][]string
	th   bool
}

// flattenHTML walks the DOM in document order, emitting text lines and
// parsed tables. Nested markup inside a block collapses to one line.
func flattenHTML(doc *html.Node) []flowItem {
	var items []flowItem
	var line strings.Builder

	flushLine := func() {
		for _, l := range strings.Split(line.String(), "\n") {
			l = strings.TrimSpace(l)
			if l != "" {
				items = append(items, flowItem{text: l})
			}
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
				line.WriteString("\n")
				return
			case "table":
				flushLine()
				rows, th := tableRows(n)
				items = append(items, flowItem{rows: rows, th: th})
				return
			}
			if isBlockTag(n.Data) {
				flushLine()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				flushLine()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBodyNode(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	flushLine()
	return items
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "section", "article", "center":
		return true
	}
	return false
}

// tableRows extracts cell text per <tr>. The boolean reports whether
// the first kept row used <th> cells.
func tableRows(table *html.Node) ([][]string, bool) {
	var trs []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			trs = append(trs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(table)

	var rows [][]string
	firstTH := false
	for _, tr := range trs {
		var cells []string
		hasTH := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				if c.Data == "th" {
					hasTH = true
				}
				cells = append(cells, collapseSpace(nodeText(c)))
			}
		}
		if len(cells) == 0 {
			continue
		}
		if len(rows) == 0 {
			firstTH = hasTH
		}
		rows = append(rows, cells)
	}
	return rows, firstTH
}

func nodeText(n *html.Node) string {
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
	return strings.TrimSpace(buf.String())
}

func collapseSpace(s string) string {
	return strings.TrimSpace(innerSpaceRe.ReplaceAllString(s, " "))
}

func findBodyNode(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBodyNode(c); b != nil {
			return b
		}
	}
	return nil
}
