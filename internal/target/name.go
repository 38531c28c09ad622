package target

import (
	"regexp"
	"strings"
)

// namePatterns capture the indicator phrase for the most common KPI
// phrasings. Tried in order; the first capture longer than three
// characters wins.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(tốc độ tăng[^,;:.]*?)\s+(?:bình quân|đạt|khoảng|trên|dưới|là|ở mức|ước)`),
	regexp.MustCompile(`(?i)((?:GDP|GRDP)(?:\s*\([^)]*\))?\s+bình quân đầu người)`),
	regexp.MustCompile(`(?i)(tỷ trọng[^,;:.]*?)\s+(?:đạt|chiếm|trên|dưới|khoảng|còn|là|ở mức|tăng|giảm)`),
	regexp.MustCompile(`(?i)(tỷ lệ[^,;:.]*?)\s+(?:đạt|trên|dưới|khoảng|còn|là|ở mức|tăng|giảm|ổn định)`),
}

// capBeforeVerbRe is the generic "capitalized phrase before đạt" form.
var capBeforeVerbRe = regexp.MustCompile(`(\p{Lu}[^,;.]{2,80}?)\s+đạt\s`)

// namePrefixRes strip leading boilerplate before the subject is read.
var namePrefixRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^phấn đấu\s+`),
	regexp.MustCompile(`(?i)^đến năm \d{4}[,:]?\s*`),
	regexp.MustCompile(`(?i)^năm \d{4}[,:]?\s*`),
	regexp.MustCompile(`(?i)^giai đoạn \d{4}\s*[-–—]\s*\d{4}[,:]?\s*`),
	regexp.MustCompile(`(?i)^hằng năm[,:]?\s*`),
	regexp.MustCompile(`(?i)^(?:có|đưa|hoàn thành|tiếp tục|duy trì|giữ vững|bảo đảm|đảm bảo)\s+`),
}

// nameBeforeVerbRe captures whatever precedes the first comparison
// verb once prefixes are stripped.
var nameBeforeVerbRe = regexp.MustCompile(`(?i)^(.{4,}?)\s+(?:đạt|trên|dưới|khoảng|chiếm|là|ở mức|còn|vượt|tối thiểu|tối đa|không quá|giảm|tăng|ổn định|xấp xỉ|ước)\s`)

// nameAfterValueRe captures a noun phrase following the number, for
// clauses shaped like "... 5.000 km đường bộ cao tốc".
var nameAfterValueRe = regexp.MustCompile(`(?i)\d[\d.,]*\s*(?:km[²2]?|ha|mw|gw|%|usd|tỷ đồng|triệu đồng|tấn)?\s+(\p{L}[^,;.]{3,80})`)

// extractName decides what a clause's KPI is called, trying indicator
// phrasings first and degrading to a clause prefix.
func extractName(clause string) string {
	c := strings.TrimSpace(clause)

	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(c); m != nil {
			if n := cleanName(m[1]); nameLongEnough(n) {
				return n
			}
		}
	}

	if m := capBeforeVerbRe.FindStringSubmatch(c); m != nil {
		if n := cleanName(m[1]); nameLongEnough(n) {
			return n
		}
	}

	s := c
	for changed := true; changed; {
		changed = false
		for _, re := range namePrefixRes {
			if next := re.ReplaceAllString(s, ""); next != s {
				s, changed = next, true
			}
		}
	}
	if m := nameBeforeVerbRe.FindStringSubmatch(s); m != nil {
		if n := cleanName(m[1]); nameLongEnough(n) {
			return n
		}
	}

	if m := nameAfterValueRe.FindStringSubmatch(c); m != nil {
		if n := cleanName(m[1]); nameLongEnough(n) {
			return n
		}
	}

	return truncateName(c)
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), ":;,.-– ")
}

func nameLongEnough(s string) bool {
	return len([]rune(s)) > 3
}

// truncateName cuts a clause to at most 80 runes at a word boundary.
func truncateName(clause string) string {
	s := strings.TrimSpace(clause)
	runes := []rune(s)
	if len(runes) <= 80 {
		return cleanName(s)
	}
	cut := string(runes[:80])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cleanName(cut)
}
