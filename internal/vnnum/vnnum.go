// Package vnnum parses numbers the way Vietnamese planning documents
// write them: "." groups thousands and "," marks the decimal point, so
// "7.500" is seven thousand five hundred and "6,5" is six and a half.
package vnnum

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	integerRe = regexp.MustCompile(`^-?\d+$`)
	groupedRe = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
	decimalRe = regexp.MustCompile(`^-?\d+,\d+$`)

	intlGroupedRe = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	intlDecimalRe = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// Parse converts a Vietnamese-formatted numeric string to a float64.
// The boolean reports whether raw was a recognized number; callers get
// (0, false) for anything else, never an error.
//
// A value shaped like X.YYY (one to three integer digits, exactly three
// after the dot) could be an international decimal, but in these
// documents it is always a thousands grouping and is parsed as one.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	switch {
	case integerRe.MatchString(s):
	case groupedRe.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case decimalRe.MatchString(s):
		s = strings.ReplaceAll(s, ",", ".")
	default:
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseAny parses Vietnamese format first and falls back to the
// international convention ("1,234.56", "1.5"). Appendix tables pasted
// from spreadsheets mix both, so cell coercion goes through here. On
// ambiguous input the Vietnamese reading wins.
func ParseAny(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, ok := Parse(s); ok {
		return v, true
	}
	switch {
	case intlGroupedRe.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case intlDecimalRe.MatchString(s):
	default:
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
