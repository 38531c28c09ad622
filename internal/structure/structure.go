// Package structure parses the body of a Vietnamese resolution or
// decision into the doctree model. Resolutions follow a fixed outline:
// preamble, enacting clause ("QUYẾT NGHỊ:" / "QUYẾT ĐỊNH:"), numbered
// articles ("Điều 1.") subdivided by roman parts, arabic points,
// lettered points and dash bullets, then a signature block.
package structure

import (
	"regexp"
	"strings"

	"github.com/quangtrung-dev/planparse/internal/doctree"
)

var (
	dieuRe   = regexp.MustCompile(`^Điều\s+(\d+)\s*[.:]\s*(.*)$`)
	romanRe  = regexp.MustCompile(`^([IVXLCDM]+)[.)](?:\s+(.*))?$`)
	arabicRe = regexp.MustCompile(`^(\d+)[.)](?:\s+(.*))?$`)
	letterRe = regexp.MustCompile(`^([a-zđ])[.)](?:\s+(.*))?$`)
	dashRe   = regexp.MustCompile(`^[-–—+•]\s*(.+)$`)
)

// enactingMarkers close the preamble. The marker line itself belongs to
// the preamble.
var enactingMarkers = []string{"QUYẾT NGHỊ:", "QUYẾT ĐỊNH:"}

// signaturePrefixes open the signature block when found after the last
// Điều heading.
var signaturePrefixes = []string{
	"PHỤ LỤC",
	"TM.",
	"KT.",
	"NƠI NHẬN:",
	"Nơi nhận:",
	"CHỦ TỊCH",
	"THỦ TƯỚNG",
}

// Parser splits resolution text into preamble, section tree and
// signature block. It never fails: text with no recognizable outline
// comes back as a document with empty boundaries and whatever sections
// matched.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(text string) *doctree.ParsedDocument {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	bodyStart := preambleEnd(lines)
	sigStart := signatureStart(lines, bodyStart)

	doc := &doctree.ParsedDocument{
		Preamble:       strings.TrimSpace(strings.Join(lines[:bodyStart], "\n")),
		SignatureBlock: strings.TrimSpace(strings.Join(lines[sigStart:], "\n")),
	}

	// Stack of currently open sections, outermost first.
	type open struct {
		sec   *doctree.Section
		level doctree.Level
	}
	var stack []open
	sortOrder := 0

	push := func(sec *doctree.Section) {
		// Pop until the top is strictly shallower than the new section.
		for len(stack) > 0 && stack[len(stack)-1].level >= sec.Level {
			stack = stack[:len(stack)-1]
		}
		sec.SortOrder = sortOrder
		sortOrder++
		if len(stack) == 0 {
			doc.Sections = append(doc.Sections, sec)
		} else {
			parent := stack[len(stack)-1].sec
			parent.Children = append(parent.Children, sec)
		}
		stack = append(stack, open{sec: sec, level: sec.Level})
	}

	for _, raw := range lines[bodyStart:sigStart] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if sec := matchHeading(line); sec != nil {
			push(sec)
			continue
		}
		// Continuation text goes to the innermost open section; orphan
		// text before any heading is dropped.
		if len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1].sec
		if top.Content == "" {
			top.Content = line
		} else {
			top.Content += "\n" + line
		}
	}

	return doc
}

// matchHeading tries the five heading patterns in outer-to-inner order
// and returns a fresh section for the first that matches, or nil.
// ROMAN runs before ARABIC so "IV." is never read as a number; the
// arabic pattern cannot match letters anyway, but the order keeps the
// intent visible.
func matchHeading(line string) *doctree.Section {
	if m := dieuRe.FindStringSubmatch(line); m != nil {
		return &doctree.Section{Level: doctree.LevelDieu, Number: m[1], Title: strings.TrimSpace(m[2])}
	}
	if m := romanRe.FindStringSubmatch(line); m != nil {
		return &doctree.Section{Level: doctree.LevelRoman, Number: m[1], Title: strings.TrimSpace(m[2])}
	}
	if m := arabicRe.FindStringSubmatch(line); m != nil {
		return &doctree.Section{Level: doctree.LevelArabic, Number: m[1], Title: strings.TrimSpace(m[2])}
	}
	if m := letterRe.FindStringSubmatch(line); m != nil {
		return &doctree.Section{Level: doctree.LevelLetter, Number: m[1], Title: strings.TrimSpace(m[2])}
	}
	if m := dashRe.FindStringSubmatch(line); m != nil {
		// Dash bullets carry their text as content, not as a title.
		return &doctree.Section{Level: doctree.LevelDash, Content: strings.TrimSpace(m[1])}
	}
	return nil
}

// preambleEnd returns the index of the first body line. The enacting
// clause closes the preamble inclusively; failing that, the first
// "Điều N." line closes it exclusively; failing both there is no
// preamble and the whole text is body.
func preambleEnd(lines []string) int {
	marker, firstDieu := -1, -1
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if marker == -1 {
			for _, m := range enactingMarkers {
				if strings.Contains(line, m) {
					marker = i
					break
				}
			}
		}
		if firstDieu == -1 && dieuRe.MatchString(line) {
			firstDieu = i
		}
		if marker != -1 && firstDieu != -1 {
			break
		}
	}
	if marker != -1 && (firstDieu == -1 || marker < firstDieu) {
		return marker + 1
	}
	if firstDieu != -1 {
		return firstDieu
	}
	return 0
}

// signatureStart returns the index of the first signature line, or
// len(lines) when none follows the last Điều heading.
func signatureStart(lines []string, bodyStart int) int {
	lastDieu := -1
	for i := len(lines) - 1; i >= bodyStart; i-- {
		if dieuRe.MatchString(strings.TrimSpace(lines[i])) {
			lastDieu = i
			break
		}
	}
	if lastDieu == -1 {
		return len(lines)
	}
	for i := lastDieu + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		for _, m := range signaturePrefixes {
			if strings.HasPrefix(line, m) {
				return i
			}
		}
	}
	return len(lines)
}
