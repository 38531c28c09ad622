package target

import (
	"math"
	"regexp"
	"strings"

	"github.com/quangtrung-dev/planparse/internal/vnnum"
)

const (
	labelExact  = "exact"
	labelAbove  = "above"
	labelBelow  = "below"
	labelRange  = "range"
	labelApprox = "approximately"
)

// num matches a Vietnamese-formatted numeral: "15", "7.500", "6,5",
// "1.234,56".
const num = `-?\d+(?:\.\d{3})*(?:,\d+)?`

// pattern couples a value regex with its comparison label. vals lists
// the submatch indexes of the value group(s); hint is the submatch
// index of an inline unit, or 0.
type pattern struct {
	label string
	vals  []int
	hint  int
	re    *regexp.Regexp
}

// valuePatterns is tried in order per clause. Specific forms (explicit
// ranges, "đạt khoảng") come before generic ones (bare percentages).
// Once a higher-priority match has claimed a byte range of the clause,
// later matches overlapping that range are discarded.
var valuePatterns = []pattern{
	{labelRange, []int{1, 2}, 0, regexp.MustCompile(`(?i)từ\s+(` + num + `)\s+(?:đến|lên)\s+(` + num + `)`)},
	{labelRange, []int{1, 2}, 3, regexp.MustCompile(`(?i)(?:đạt|tăng|giảm|chiếm|ở mức|còn)\s+(?:bình quân\s+)?(?:khoảng\s+)?(` + num + `)\s*[-–—]\s*(` + num + `)\s*(%/năm|%)?`)},
	{labelRange, []int{1, 2}, 3, regexp.MustCompile(`(` + num + `)\s*[-–—]\s*(` + num + `)\s*(%/năm|%)`)},
	{labelApprox, []int{1}, 2, regexp.MustCompile(`(?i)đạt\s+(?:mức\s+)?khoảng\s+(` + num + `)\s*(%/năm|%)?`)},
	{labelApprox, []int{1}, 2, regexp.MustCompile(`(?i)(?:khoảng|xấp xỉ|ước đạt)\s+(` + num + `)\s*(%/năm|%)?`)},
	{labelAbove, []int{1}, 2, regexp.MustCompile(`(?i)(?:đạt\s+)?(?:trên|vượt)\s+(` + num + `)\s*(%/năm|%)?`)},
	{labelAbove, []int{1}, 0, regexp.MustCompile(`(?i)(?:tối thiểu|ít nhất|không thấp hơn)\s+(` + num + `)`)},
	{labelBelow, []int{1}, 2, regexp.MustCompile(`(?i)(?:đạt\s+)?(?:dưới|không quá|tối đa|không vượt quá)\s+(` + num + `)\s*(%/năm|%)?`)},
	{labelBelow, []int{1}, 0, regexp.MustCompile(`(?i)giảm\s+(?:xuống\s+)?còn\s+(` + num + `)`)},
	{labelExact, []int{1}, 2, regexp.MustCompile(`(?i)(?:đạt|chiếm|ở mức|duy trì ở mức|ổn định ở mức)\s+(?:mức\s+)?(` + num + `)\s*(%/năm|%)?`)},
	{labelExact, []int{1}, 2, regexp.MustCompile(`(?i)là\s+(` + num + `)\s*(%/năm|%)?`)},
	{labelExact, []int{1}, 2, regexp.MustCompile(`(?i)(?:tăng|giảm)\s+(?:bình quân\s+)?(` + num + `)\s*(%/năm|%)`)},
	{labelExact, []int{1}, 2, regexp.MustCompile(`(` + num + `)\s*(%/năm|%)`)},
}

// extractClause runs the pattern table over one clause. The sentence
// is carried along for year lookup only.
func extractClause(clause, sentence string) []Target {
	var claimed [][2]int
	var out []Target
	for _, p := range valuePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(clause, -1) {
			span := [2]int{m[0], m[1]}
			if overlapsAny(claimed, span) {
				continue
			}
			t, ok := buildTarget(p, m, clause, sentence)
			if !ok {
				continue
			}
			claimed = append(claimed, span)
			out = append(out, t)
		}
	}
	return out
}

func overlapsAny(claimed [][2]int, span [2]int) bool {
	for _, c := range claimed {
		if span[0] < c[1] && c[0] < span[1] {
			return true
		}
	}
	return false
}

func buildTarget(p pattern, m []int, clause, sentence string) (Target, bool) {
	group := func(i int) string {
		if 2*i+1 >= len(m) || m[2*i] < 0 {
			return ""
		}
		return clause[m[2*i]:m[2*i+1]]
	}

	var vals []float64
	for _, gi := range p.vals {
		v, ok := vnnum.Parse(group(gi))
		if !ok {
			return Target{}, false
		}
		vals = append(vals, v)
	}

	t := Target{Type: Quantitative, RawTextVi: strings.TrimSpace(clause)}
	switch p.label {
	case labelRange:
		lo, hi := vals[0], vals[1]
		if hi < lo {
			lo, hi = hi, lo
		}
		// "2021 - 2030" caught by a range pattern is a period, not a
		// value range.
		if isYearSpan(lo, hi) {
			return Target{}, false
		}
		mid := (lo + hi) / 2
		t.Min, t.Max, t.Value = &lo, &hi, &mid
	case labelAbove:
		v := vals[0]
		t.Min, t.Value = &v, &v
		t.setMeta("comparison", "above")
	case labelBelow:
		v := vals[0]
		t.Max, t.Value = &v, &v
		t.setMeta("comparison", "below")
	case labelApprox:
		v := vals[0]
		t.Value = &v
		t.setMeta("comparison", "approximately")
	default:
		v := vals[0]
		t.Value = &v
	}

	hint := ""
	if p.hint > 0 {
		hint = group(p.hint)
	}
	t.Unit = detectUnit(clause, hint)
	year, periodStart, periodEnd := extractYear(clause, sentence)
	t.Year = year
	if periodStart != "" {
		t.setMeta("period_start", periodStart)
		t.setMeta("period_end", periodEnd)
	}
	t.NameVi = extractName(clause)
	return t, true
}

func isYearSpan(lo, hi float64) bool {
	return lo == math.Trunc(lo) && hi == math.Trunc(hi) &&
		lo >= 2000 && lo <= 2099 && hi > lo && hi <= 2099
}
