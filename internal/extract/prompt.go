package extract

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptChars caps how much section text goes into one request.
// Longer sections are split into pieces of this size before calling.
const MaxPromptChars = 30000

// PromptOverlap is how much of one piece's tail repeats at the head of
// the next, so a target clause sitting on a cut survives it.
const PromptOverlap = 500

// TruncationMarker is appended when the text was cut at the cap.
const TruncationMarker = "[VĂN BẢN ĐÃ BỊ CẮT BỚT]"

// TargetInstruction is the fixed system instruction for target
// extraction from Vietnamese planning documents.
const TargetInstruction = `You extract quantified planning targets (chỉ tiêu) from Vietnamese government resolutions and planning decisions. Return a JSON array of target objects. Each object may have these fields:

- "name_vi": the indicator name in Vietnamese, as written (string)
- "name_en": short English translation of the name (string or null)
- "target_type": one of "QUANTITATIVE", "QUALITATIVE", "MILESTONE"
- "target_value": point value as a number (float or null)
- "target_min": lower bound for ranges and "trên"/"tối thiểu" floors (float or null)
- "target_max": upper bound for ranges and "dưới"/"không quá" ceilings (float or null)
- "unit": the unit as written ("%", "%/năm", "tỷ đồng", "USD", "km", "ha", ...)
- "target_year": the year the target is due (integer or null)
- "baseline_value": baseline value when stated (float or null)
- "baseline_year": baseline year when stated (integer or null)
- "raw_text_vi": the exact clause the target came from (string)

Number conventions in the source text:
- A dot groups thousands: "7.500" means 7500.
- A comma is the decimal separator: "6,5" means 6.5.
- "từ X đến Y" and "X - Y" are value ranges: set target_min and target_max.
- "trên X", "tối thiểu X", "ít nhất X" mean at least X: set target_min and target_value to X.
- "dưới X", "không quá X", "tối đa X" mean at most X: set target_max and target_value to X.
- "khoảng X", "xấp xỉ X" mean approximately X: set target_value.

Rules:
- One object per distinct indicator, even when several share a sentence.
- Never convert units; keep the value as written and the unit separate.
- "giai đoạn 2021 - 2030" is a planning period, not a value range.
- Use QUALITATIVE for unquantified commitments and MILESTONE for complete-by-year commitments.
- Return an empty array [] if the section states no targets.

Respond with ONLY the JSON array, no other text.`

// BuildPrompt embeds section text into the user message, truncating
// at a rune boundary when the section exceeds the cap.
func BuildPrompt(text string) string {
	if len(text) > MaxPromptChars {
		cut := MaxPromptChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n\n" + TruncationMarker
	}

	var sb strings.Builder
	sb.WriteString("Văn bản:\n---\n")
	sb.WriteString(text)
	sb.WriteString("\n---")
	return sb.String()
}
