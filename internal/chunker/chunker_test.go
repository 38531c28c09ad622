package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_ShortTextPassesThrough(t *testing.T) {
	text := "Điều 1. Phê duyệt kế hoạch.\n\n1. Mục tiêu tổng quát."
	pieces := Split(text, Config{MaxBytes: 1000, OverlapBytes: 100})
	if len(pieces) != 1 {
		t.Fatalf("pieces = %d, want 1", len(pieces))
	}
	if pieces[0] != text {
		t.Errorf("piece = %q, want input unchanged", pieces[0])
	}
}

func TestSplit_BreaksOnParagraphs(t *testing.T) {
	para := strings.Repeat("Tốc độ tăng trưởng kinh tế đạt mức cao. ", 10)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 6))

	cfg := Config{MaxBytes: 1200, OverlapBytes: 100}
	pieces := Split(text, cfg)

	if len(pieces) < 2 {
		t.Fatalf("pieces = %d, want a split", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > cfg.MaxBytes {
			t.Errorf("piece %d is %d bytes, cap %d", i, len(p), cfg.MaxBytes)
		}
	}
}

func TestSplit_OverlapCarriesTail(t *testing.T) {
	var parts []string
	for i := 0; i < 8; i++ {
		parts = append(parts, strings.Repeat("mục tiêu ", 30))
	}
	text := strings.Join(parts, "\n\n")

	cfg := Config{MaxBytes: 700, OverlapBytes: 60}
	pieces := Split(text, cfg)
	if len(pieces) < 2 {
		t.Fatalf("pieces = %d, want several", len(pieces))
	}

	for i := 1; i < len(pieces); i++ {
		tail := lastWords(pieces[i-1], cfg.OverlapBytes)
		if tail == "" {
			t.Fatalf("piece %d produced no overlap tail", i-1)
		}
		if !strings.HasPrefix(pieces[i], tail) {
			t.Errorf("piece %d does not start with the previous tail %q", i, tail)
		}
	}
}

func TestSplit_LongParagraphFallsBackToSentences(t *testing.T) {
	// One paragraph, no blank lines, sentence-sized clauses.
	text := strings.TrimSpace(strings.Repeat("Tỷ lệ hộ nghèo giảm bình quân 2%/năm theo chuẩn nghèo đa chiều. ", 40))

	cfg := Config{MaxBytes: 800, OverlapBytes: 0}
	pieces := Split(text, cfg)
	if len(pieces) < 2 {
		t.Fatalf("pieces = %d, want a split", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > cfg.MaxBytes {
			t.Errorf("piece %d is %d bytes, cap %d", i, len(p), cfg.MaxBytes)
		}
	}
}

func TestSplit_UnpunctuatedTextFallsBackToWords(t *testing.T) {
	// No sentence enders at all, the shape OCR noise takes.
	text := strings.TrimSpace(strings.Repeat("5000 1200 dự án giao thông ", 60))

	cfg := Config{MaxBytes: 400, OverlapBytes: 40}
	pieces := Split(text, cfg)
	if len(pieces) < 2 {
		t.Fatalf("pieces = %d, want a split", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > cfg.MaxBytes {
			t.Errorf("piece %d is %d bytes, cap %d", i, len(p), cfg.MaxBytes)
		}
	}
}

func TestSplit_KeepsContentAndRunes(t *testing.T) {
	marker := "Thu nhập bình quân đầu người đạt 7.500 USD."
	filler := strings.Repeat("Phát triển đô thị xanh và bền vững. ", 25)
	text := filler + "\n\n" + filler + "\n\n" + marker

	pieces := Split(text, Config{MaxBytes: 600, OverlapBytes: 50})

	joined := strings.Join(pieces, "\n")
	if !strings.Contains(joined, marker) {
		t.Error("marker sentence lost in the split")
	}
	for i, p := range pieces {
		if !utf8.ValidString(p) {
			t.Errorf("piece %d split a rune", i)
		}
	}
}

func TestLastWords(t *testing.T) {
	s := "một hai ba bốn năm"
	if got := lastWords(s, 100); got != "" {
		t.Errorf("fitting string should give no tail, got %q", got)
	}
	got := lastWords(s, 10)
	if got == "" || !strings.HasSuffix(s, got) {
		t.Errorf("tail %q is not a suffix of %q", got, s)
	}
	if len(got) > 10 {
		t.Errorf("tail is %d bytes, cap 10", len(got))
	}
}

func TestSentences_SplitsOnSemicolons(t *testing.T) {
	text := "a) Tốc độ tăng GRDP đạt 7%/năm; b) Tỷ lệ che phủ rừng đạt 42%; c) Thu ngân sách tăng 10%."
	got := sentences(text)
	if len(got) != 3 {
		t.Fatalf("sentences = %d, want 3: %q", len(got), got)
	}
	if !strings.HasPrefix(got[1], "b)") {
		t.Errorf("second sentence = %q", got[1])
	}
}
