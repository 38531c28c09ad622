package target

import (
	"regexp"
	"strings"
)

// sentenceCutRe marks a sentence end inside a line: a period followed
// by whitespace and an uppercase letter. Decimal commas and grouped
// thousands ("1.234") never trigger it.
var sentenceCutRe = regexp.MustCompile(`\.\s+(\p{Lu})`)

// subjectCutRe finds commas that introduce a fresh KPI subject carrying
// its own comparison verb, so a sentence listing several indicators
// ("... đạt trên 50%, khu vực công nghiệp trên 40%, ...") breaks into
// per-indicator clauses. The window between subject and verb may cross
// further commas ("khu vực nông, lâm, thủy sản dưới 10%") but not a
// sentence boundary.
var subjectCutRe = regexp.MustCompile(`(?i),\s*(?:(?:phấn đấu|có)\s+)?` +
	`(?:khu vực|tỷ lệ|tỷ trọng|tốc độ|tổng|số|diện tích|kim ngạch|thu nhập|năng suất|sản lượng|tuổi thọ|độ che phủ|công suất|mật độ|quy mô|dân số|GDP|GRDP)` +
	`[^;.]*?\s(?:đạt|trên|dưới|khoảng|chiếm|còn|là|ở mức|tối thiểu|tối đa|không quá|vượt|giảm|tăng|đến)\s`)

// splitSentences cuts a blob into sentences: newlines and semicolons
// always end one, and a period ends one when followed by whitespace
// and an uppercase letter. Empty fragments are dropped.
func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, frag := range strings.Split(line, ";") {
			for _, s := range splitPeriods(frag) {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func splitPeriods(s string) []string {
	var out []string
	for {
		m := sentenceCutRe.FindStringSubmatchIndex(s)
		if m == nil {
			break
		}
		out = append(out, s[:m[0]+1])
		s = s[m[2]:]
	}
	return append(out, s)
}

// splitClauses cuts one sentence at commas that open a new indicator.
func splitClauses(sentence string) []string {
	cuts := subjectCutRe.FindAllStringIndex(sentence, -1)
	var out []string
	start := 0
	for _, m := range cuts {
		out = append(out, sentence[start:m[0]])
		start = m[0] + 1 // past the comma
	}
	out = append(out, sentence[start:])
	var clauses []string
	for _, c := range out {
		c = strings.TrimSpace(c)
		if c != "" {
			clauses = append(clauses, c)
		}
	}
	return clauses
}
