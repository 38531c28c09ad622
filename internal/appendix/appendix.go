// Package appendix parses the "PHỤ LỤC" blocks that trail Vietnamese
// planning resolutions into structured tables. Two pipelines, one for
// plain text and one for HTML, share identifier parsing, cell coercion
// and the keyword classifier.
package appendix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/quangtrung-dev/planparse/internal/vnnum"
)

// Type classifies what an appendix table lists.
type Type string

const (
	ProjectList    Type = "PROJECT_LIST"
	MapList        Type = "MAP_LIST"
	IndicatorTable Type = "INDICATOR_TABLE"
	RouteTable     Type = "ROUTE_TABLE"
	FacilityList   Type = "FACILITY_LIST"
	Mixed          Type = "MIXED"
)

// Row is one data row. RowNumber and SortOrder are equal, 1-based and
// contiguous within an appendix.
type Row struct {
	RowNumber int            `json:"row_number"`
	SortOrder int            `json:"sort_order"`
	Data      map[string]any `json:"data"`
}

// Appendix is one parsed appendix block.
type Appendix struct {
	Number  int      `json:"appendix_number"`
	TitleVi string   `json:"title_vi"`
	Type    Type     `json:"appendix_type"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// classifyRules map folded keywords to a type, first match wins. The
// match runs over the diacritic-stripped title plus a body excerpt, so
// "DANH MỤC DỰ ÁN" and "Danh mục dự án" classify alike.
var classifyRules = []struct {
	keyword string
	typ     Type
}{
	{"ban do", MapList},
	{"danh muc du an", ProjectList},
	{"du an", ProjectList},
	{"chi tieu", IndicatorTable},
	{"tuyen duong", RouteTable},
	{"tuyen cao toc", RouteTable},
	{"luong tuyen", RouteTable},
	{"co so", FacilityList},
	{"benh vien", FacilityList},
	{"truong hoc", FacilityList},
}

func classify(title, excerpt string) Type {
	folded := foldVietnamese(title + " " + excerpt)
	for _, r := range classifyRules {
		if strings.Contains(folded, r.keyword) {
			return r.typ
		}
	}
	return Mixed
}

// foldVietnamese lowercases and strips diacritics. NFD leaves đ
// undecomposed, so it is mapped by hand.
func foldVietnamese(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "đ", "d")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var romanIDRe = regexp.MustCompile(`^[IVXLCDM]+$`)

var romanValues = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}

func romanToInt(s string) int {
	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

// parseAppendixID converts an explicit appendix identifier to an
// integer: arabic as written, roman via the conversion table, a single
// letter as its alphabet position. Roman is tried before the letter
// reading, so "II" is 2 and "B" is 2.
func parseAppendixID(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if romanIDRe.MatchString(s) {
		return romanToInt(s), true
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
		return int(s[0]-'A') + 1, true
	}
	return 0, false
}

// coerceCell stores a cell as a number when it parses as one, in
// either Vietnamese or international format, else as the raw string.
func coerceCell(cell string) any {
	if v, ok := vnnum.ParseAny(cell); ok {
		return v
	}
	return cell
}

func columnName(cell string, i int) string {
	if cell == "" {
		return fmt.Sprintf("Column_%d", i+1)
	}
	return cell
}

// buildRow maps cells onto columns; cells beyond the column count are
// kept under Extra_N keys instead of being dropped.
func buildRow(cells, columns []string, rowNum int) Row {
	data := make(map[string]any, len(cells))
	for i, c := range cells {
		var key string
		if i < len(columns) {
			key = columns[i]
		} else {
			key = fmt.Sprintf("Extra_%d", i-len(columns)+1)
		}
		data[key] = coerceCell(c)
	}
	return Row{RowNumber: rowNum, SortOrder: rowNum, Data: data}
}
