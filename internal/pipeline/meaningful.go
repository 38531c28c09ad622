package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// pageMarkerRe matches the page separators scanners and PDF text
// layers leave behind: "-- 3 of 12 --", "--- Trang 5 ---", "- 7 -".
var pageMarkerRe = regexp.MustCompile(`(?im)^[-=\s]*(?:trang\s+)?\d+(?:\s*(?:of|/|trên)\s*\d+)?[-=\s]*$`)

// MeaningfulLength measures the text that is left after page markers
// are stripped and whitespace is collapsed. A scanned PDF's text
// layer comes back as little more than markers, and a low count is
// the signal to retry with OCR.
func MeaningfulLength(text string) int {
	cleaned := pageMarkerRe.ReplaceAllString(text, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return utf8.RuneCountInString(cleaned)
}
