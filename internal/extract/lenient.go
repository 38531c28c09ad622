package extract

import (
	"encoding/json"
	"strings"

	"github.com/quangtrung-dev/planparse/internal/target"
	"github.com/quangtrung-dev/planparse/internal/vnnum"
)

// decodeTargets reads the model's JSON array without insisting on
// exact field casing. Objects are defaulted rather than rejected; the
// only objects dropped are the ones carrying neither a name nor any
// value. The boolean is false when the payload is not an array of
// objects at all.
func decodeTargets(raw []byte) ([]target.Target, bool) {
	var objs []map[string]any
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, false
	}

	out := make([]target.Target, 0, len(objs))
	for _, m := range objs {
		t, ok := targetFromObject(m)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, true
}

func targetFromObject(m map[string]any) (target.Target, bool) {
	t := target.Target{
		Type:      target.ParseType(stringField(m, "target_type", "targetType", "type")),
		NameVi:    stringField(m, "name_vi", "nameVi", "name"),
		NameEn:    stringField(m, "name_en", "nameEn"),
		Unit:      stringField(m, "unit"),
		RawTextVi: stringField(m, "raw_text_vi", "rawTextVi", "raw_text"),

		Value:         floatField(m, "target_value", "targetValue", "value"),
		Min:           floatField(m, "target_min", "targetMin", "min"),
		Max:           floatField(m, "target_max", "targetMax", "max"),
		Year:          intField(m, "target_year", "targetYear", "year"),
		BaselineValue: floatField(m, "baseline_value", "baselineValue"),
		BaselineYear:  intField(m, "baseline_year", "baselineYear"),
	}

	if t.NameVi == "" && t.Value == nil && t.Min == nil && t.Max == nil {
		return target.Target{}, false
	}
	return t, true
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// floatField accepts JSON numbers and numeric strings in either the
// Vietnamese or international notation.
func floatField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			f := n
			return &f
		case string:
			if f, ok := vnnum.ParseAny(strings.TrimSpace(n)); ok {
				return &f
			}
		}
	}
	return nil
}

func intField(m map[string]any, keys ...string) *int {
	if f := floatField(m, keys...); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}
