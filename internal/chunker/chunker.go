// Package chunker splits long text into prompt-sized pieces.
//
// Resolution leaves are usually a paragraph or two, but OCR output and
// appendix-heavy sections can run far past a prompt cap. Pieces break
// on paragraph boundaries, then sentences, then raw word runs, and
// consecutive pieces share a short overlap so a target straddling a
// cut still appears whole in one of them.
package chunker

import "strings"

// Config bounds the pieces. Sizes are bytes of UTF-8 text; every cut
// lands on a word boundary, so pieces never split a rune.
type Config struct {
	MaxBytes     int // cap per piece
	OverlapBytes int // tail of one piece repeated at the head of the next
}

func (c Config) withDefaults() Config {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 30000
	}
	if c.OverlapBytes < 0 || c.OverlapBytes >= c.MaxBytes/2 {
		c.OverlapBytes = c.MaxBytes / 10
	}
	return c
}

// Split cuts text into pieces of at most MaxBytes. Text that fits the
// cap comes back unchanged as a single piece.
func Split(text string, cfg Config) []string {
	cfg = cfg.withDefaults()
	if len(text) <= cfg.MaxBytes {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder
	overlapLen := 0 // prefix of current that is carried overlap, not fresh text

	flush := func() {
		if current.Len() <= overlapLen {
			// Nothing fresh since the last cut; drop the stale tail
			// instead of emitting a piece of pure overlap.
			current.Reset()
			overlapLen = 0
			return
		}
		piece := current.String()
		pieces = append(pieces, piece)
		current.Reset()
		overlapLen = 0
		if tail := lastWords(piece, cfg.OverlapBytes); tail != "" {
			current.WriteString(tail)
			overlapLen = current.Len()
		}
	}

	add := func(unit, sep string) {
		// Flushing at most twice: the second pass can only trigger when
		// the carried overlap alone blocks the unit, and then it
		// empties the buffer.
		for current.Len() > 0 && current.Len()+len(sep)+len(unit) > cfg.MaxBytes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(unit)
	}

	for _, para := range paragraphs(text) {
		if len(para) <= cfg.MaxBytes {
			add(para, "\n\n")
			continue
		}
		for _, sent := range sentences(para) {
			if len(sent) <= cfg.MaxBytes {
				add(sent, "\n")
				continue
			}
			// OCR of a scanned table can be one endless "sentence";
			// fall back to raw word runs.
			for _, run := range wordRuns(sent, cfg.MaxBytes-cfg.OverlapBytes-1) {
				add(run, " ")
			}
		}
	}
	if current.Len() > overlapLen {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// paragraphs splits on blank lines and drops empty parts.
func paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits a paragraph at sentence enders followed by
// whitespace. Resolutions chain clauses with semicolons, so those
// count as enders too.
func sentences(text string) []string {
	var out []string
	var current strings.Builder
	for i, r := range text {
		current.WriteRune(r)
		if isEnder(r) && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isEnder(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == ';'
}

// wordRuns cuts text into runs of whole words, each at most maxBytes.
// A single word longer than the cap becomes its own run.
func wordRuns(text string, maxBytes int) []string {
	var out []string
	var current strings.Builder
	for _, w := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+1+len(w) > maxBytes {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// lastWords returns the longest whole-word suffix of s that fits
// maxBytes, or "" when s itself fits inside it.
func lastWords(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return ""
	}
	words := strings.Fields(s)
	size := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		need := len(words[i])
		if size > 0 {
			need++
		}
		if size+need > maxBytes {
			break
		}
		size += need
		start = i
	}
	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}
