package appendix

import (
	"regexp"
	"strings"
)

const maxTitleLines = 6

var (
	headerLineRe = regexp.MustCompile(`(?i)^PHỤ LỤC([\s:.–—-].*)?$`)
	multiSpaceRe = regexp.MustCompile(` {2,}`)
)

// FromText runs the plain-text pipeline: locate "PHỤ LỤC" headers,
// take each header's span up to the next header, read a short title
// block, then split table-looking lines into a header row and data
// rows.
func FromText(text string) []Appendix {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	type header struct {
		line  int
		id    int
		hasID bool
		rest  string
	}
	var headers []header
	for i, raw := range lines {
		if id, hasID, rest, ok := matchHeader(raw); ok {
			headers = append(headers, header{line: i, id: id, hasID: hasID, rest: rest})
		}
	}

	var out []Appendix
	for hi, h := range headers {
		end := len(lines)
		if hi+1 < len(headers) {
			end = headers[hi+1].line
		}
		ap := parseSpan(lines[h.line+1:end], h.rest)
		if h.hasID {
			ap.Number = h.id
		} else {
			ap.Number = hi + 1 // ordinal position when the header has no identifier
		}
		out = append(out, ap)
	}
	return out
}

// matchHeader reports whether a line opens an appendix. It returns the
// explicit identifier when one follows the marker ("PHỤ LỤC I", "PHỤ
// LỤC SỐ 02") and whatever trails the identifier on the same line.
func matchHeader(line string) (id int, hasID bool, rest string, ok bool) {
	m := headerLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false, "", false
	}
	tail := strings.TrimLeft(m[1], " \t:.–—-")
	tok, remainder, _ := strings.Cut(tail, " ")
	if foldVietnamese(strings.Trim(tok, ":.–—-")) == "so" {
		tok, remainder, _ = strings.Cut(strings.TrimSpace(remainder), " ")
	}
	if n, okID := parseAppendixID(strings.Trim(tok, ":.–—-")); okID {
		return n, true, strings.TrimSpace(strings.TrimLeft(remainder, " :.–—-")), true
	}
	return 0, false, strings.TrimSpace(tail), true
}

// parseSpan reads one appendix body: title block first, then rows.
func parseSpan(span []string, firstTitle string) Appendix {
	var titleLines []string
	if firstTitle != "" {
		titleLines = append(titleLines, firstTitle)
	}

	i := 0
	// Leading blank lines between the header and the title are common
	// in converted documents.
	for i < len(span) && strings.TrimSpace(span[i]) == "" {
		i++
	}
	for ; i < len(span) && len(titleLines) < maxTitleLines; i++ {
		l := strings.TrimSpace(span[i])
		if l == "" || isTableRow(l) {
			break
		}
		titleLines = append(titleLines, l)
	}

	ap := Appendix{TitleVi: strings.Join(titleLines, " ")}

	var excerpt string
	rowNum := 0
	for ; i < len(span); i++ {
		l := strings.TrimSpace(span[i])
		if l == "" || !isTableRow(l) {
			continue
		}
		if excerpt == "" {
			excerpt = l
		}
		cells := splitRow(l)
		if ap.Columns == nil {
			ap.Columns = make([]string, len(cells))
			for ci, c := range cells {
				ap.Columns[ci] = columnName(c, ci)
			}
			continue
		}
		rowNum++
		ap.Rows = append(ap.Rows, buildRow(cells, ap.Columns, rowNum))
	}

	ap.Type = classify(ap.TitleVi, excerpt)
	return ap
}

// isTableRow is the layout heuristic: a pipe, a tab, or a run of two
// or more spaces marks a delimited line.
func isTableRow(line string) bool {
	return strings.Contains(line, "|") || strings.Contains(line, "\t") || multiSpaceRe.MatchString(line)
}

// splitRow cuts a table line by its strongest delimiter. Border pipes
// produce empty outer cells, which are stripped; interior empty cells
// survive so column positions stay aligned.
func splitRow(line string) []string {
	var cells []string
	switch {
	case strings.Contains(line, "|"):
		cells = strings.Split(line, "|")
	case strings.Contains(line, "\t"):
		cells = strings.Split(line, "\t")
	default:
		cells = multiSpaceRe.Split(line, -1)
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	for len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
