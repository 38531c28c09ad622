package target

import (
	"regexp"
	"strconv"
	"strings"
)

// unitPatterns orders unit detection from most to least specific; the
// first entry matching anywhere in the clause wins. Compound currency
// and magnitude units sit above their generic suffixes ("nghìn tỷ
// đồng" before "tỷ đồng", "%/năm" before "%").
var unitPatterns = []struct {
	unit string
	re   *regexp.Regexp
}{
	{"nghìn tỷ đồng", regexp.MustCompile(`(?i)nghìn tỷ đồng`)},
	{"tỷ đồng", regexp.MustCompile(`(?i)tỷ đồng`)},
	{"triệu đồng", regexp.MustCompile(`(?i)triệu đồng`)},
	{"tỷ USD", regexp.MustCompile(`(?i)tỷ USD`)},
	{"triệu USD", regexp.MustCompile(`(?i)triệu USD`)},
	{"USD", regexp.MustCompile(`(?i)USD`)},
	{"%/năm", regexp.MustCompile(`%\s*/\s*năm`)},
	{"%", regexp.MustCompile(`%`)},
	{"triệu tấn", regexp.MustCompile(`(?i)triệu tấn`)},
	{"nghìn tấn", regexp.MustCompile(`(?i)nghìn tấn`)},
	{"tấn", regexp.MustCompile(`(?i)\btấn`)},
	{"triệu lượt", regexp.MustCompile(`(?i)triệu lượt`)},
	{"nghìn lượt", regexp.MustCompile(`(?i)nghìn lượt`)},
	{"triệu người", regexp.MustCompile(`(?i)triệu người`)},
	{"nghìn người", regexp.MustCompile(`(?i)nghìn người`)},
	{"người/km²", regexp.MustCompile(`(?i)người\s*/\s*km[²2]`)},
	{"km²", regexp.MustCompile(`(?i)km[²2]`)},
	{"km", regexp.MustCompile(`(?i)\bkm\b`)},
	{"ha", regexp.MustCompile(`(?i)\bha\b`)},
	{"tỷ kWh", regexp.MustCompile(`(?i)tỷ kWh`)},
	{"kWh", regexp.MustCompile(`(?i)\bkWh\b`)},
	{"MW", regexp.MustCompile(`(?i)\bMW\b`)},
	{"GW", regexp.MustCompile(`(?i)\bGW\b`)},
	{"m³", regexp.MustCompile(`(?i)m³|\bm3\b`)},
	{"giường bệnh", regexp.MustCompile(`(?i)giường bệnh`)},
	{"bác sĩ", regexp.MustCompile(`(?i)bác sĩ`)},
	{"tuổi", regexp.MustCompile(`(?i)\btuổi`)},
	{"người", regexp.MustCompile(`(?i)\bngười`)},
}

// detectUnit resolves a clause's unit from the ordered table, falling
// back to the matched pattern's inline hint.
func detectUnit(clause, hint string) string {
	for _, u := range unitPatterns {
		if u.re.MatchString(clause) {
			return u.unit
		}
	}
	return normalizeUnit(hint)
}

// normalizeUnit folds a free-form unit hint onto a canonical spelling.
// Unrecognized hints pass through trimmed.
func normalizeUnit(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return ""
	}
	switch {
	case strings.Contains(h, "%/năm"):
		return "%/năm"
	case strings.Contains(h, "%"):
		return "%"
	case strings.Contains(h, "nghìn tỷ"):
		return "nghìn tỷ đồng"
	case strings.Contains(h, "tỷ") && strings.Contains(h, "usd"):
		return "tỷ USD"
	case strings.Contains(h, "triệu") && strings.Contains(h, "usd"):
		return "triệu USD"
	case strings.Contains(h, "usd"):
		return "USD"
	case strings.Contains(h, "tỷ"):
		return "tỷ đồng"
	case strings.Contains(h, "triệu"):
		return "triệu đồng"
	case strings.Contains(h, "km2"), strings.Contains(h, "km²"):
		return "km²"
	case strings.Contains(h, "km"):
		return "km"
	case strings.Contains(h, "ha"):
		return "ha"
	case strings.Contains(h, "mw"):
		return "MW"
	case strings.Contains(h, "gw"):
		return "GW"
	default:
		return strings.TrimSpace(hint)
	}
}

var (
	denNamRe    = regexp.MustCompile(`(?i)đến năm\s+(\d{4})`)
	namedYearRe = regexp.MustCompile(`(?i)\bnăm\s+(\d{4})`)
	giaiDoanRe  = regexp.MustCompile(`(?i)giai đoạn\s+(\d{4})\s*[-–—]\s*(\d{4})`)
	bareYearRe  = regexp.MustCompile(`\b(20\d{2})\b`)
)

// extractYear resolves the year a target applies to, searching the
// clause before its sentence and preferring explicit "đến năm"/"năm"
// phrasings over period spans and bare year tokens. A period span
// yields its end year plus the start/end pair for metadata.
func extractYear(clause, sentence string) (year *int, periodStart, periodEnd string) {
	for _, text := range []string{clause, sentence} {
		if m := denNamRe.FindStringSubmatch(text); m != nil {
			return yearPtr(m[1]), "", ""
		}
		if m := namedYearRe.FindStringSubmatch(text); m != nil {
			return yearPtr(m[1]), "", ""
		}
		if m := giaiDoanRe.FindStringSubmatch(text); m != nil {
			return yearPtr(m[2]), m[1], m[2]
		}
		if m := bareYearRe.FindStringSubmatch(text); m != nil {
			return yearPtr(m[1]), "", ""
		}
	}
	return nil, "", ""
}

func yearPtr(s string) *int {
	y, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &y
}
