package target

import (
	"reflect"
	"testing"
)

const demoParagraph = `Tốc độ tăng trưởng tổng sản phẩm trong nước (GDP) bình quân khoảng 7,0%/năm giai đoạn 2021 - 2030. Đến năm 2030, GDP bình quân đầu người đạt khoảng 7.500 USD. Tỷ trọng khu vực dịch vụ đạt trên 50%, khu vực công nghiệp - xây dựng trên 40%, khu vực nông, lâm, thủy sản dưới 10%. Tỷ lệ đô thị hóa đạt trên 50%. Tỷ lệ che phủ rừng ổn định ở mức 42%. Có khoảng 5.000 km đường bộ cao tốc.`

func TestExtract_RangeWithPerYearUnit(t *testing.T) {
	targets := Extract("tăng trưởng bình quân đạt 6,5 - 7,0%/năm")
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d: %+v", len(targets), targets)
	}
	tg := targets[0]
	if tg.Min == nil || *tg.Min != 6.5 {
		t.Errorf("min = %v, want 6.5", tg.Min)
	}
	if tg.Max == nil || *tg.Max != 7.0 {
		t.Errorf("max = %v, want 7.0", tg.Max)
	}
	if tg.Value == nil || *tg.Value != 6.75 {
		t.Errorf("value = %v, want midpoint 6.75", tg.Value)
	}
	if tg.Unit != "%/năm" {
		t.Errorf("unit = %q, want %%/năm", tg.Unit)
	}
}

func TestExtract_YearAndApproximately(t *testing.T) {
	targets := Extract("đến năm 2030, GDP bình quân đầu người đạt khoảng 7.500 USD")
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d: %+v", len(targets), targets)
	}
	tg := targets[0]
	if tg.Year == nil || *tg.Year != 2030 {
		t.Errorf("year = %v, want 2030", tg.Year)
	}
	if tg.Value == nil || *tg.Value != 7500 {
		t.Errorf("value = %v, want 7500", tg.Value)
	}
	if tg.Unit != "USD" {
		t.Errorf("unit = %q, want USD", tg.Unit)
	}
	if tg.Metadata["comparison"] != "approximately" {
		t.Errorf("comparison = %q, want approximately", tg.Metadata["comparison"])
	}
	if tg.NameVi != "GDP bình quân đầu người" {
		t.Errorf("name = %q", tg.NameVi)
	}
}

func TestExtract_AboveAndBelowBounds(t *testing.T) {
	targets := Extract("Tỷ trọng khu vực dịch vụ đạt trên 50%, khu vực công nghiệp - xây dựng trên 40%, khu vực nông, lâm, thủy sản dưới 10%.")
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d: %+v", len(targets), targets)
	}

	dichVu := targets[0]
	if dichVu.NameVi != "Tỷ trọng khu vực dịch vụ" {
		t.Errorf("first name = %q", dichVu.NameVi)
	}
	if dichVu.Min == nil || *dichVu.Min != 50 || dichVu.Value == nil || *dichVu.Value != 50 {
		t.Errorf("above: min and value should both be 50, got min=%v value=%v", dichVu.Min, dichVu.Value)
	}
	if dichVu.Max != nil {
		t.Errorf("above target must not set max")
	}
	if dichVu.Metadata["comparison"] != "above" {
		t.Errorf("comparison = %q, want above", dichVu.Metadata["comparison"])
	}

	nongNghiep := targets[2]
	if nongNghiep.NameVi != "khu vực nông, lâm, thủy sản" {
		t.Errorf("third name = %q", nongNghiep.NameVi)
	}
	if nongNghiep.Max == nil || *nongNghiep.Max != 10 {
		t.Errorf("below: max = %v, want 10", nongNghiep.Max)
	}
	if nongNghiep.Min != nil {
		t.Errorf("below target must not set min")
	}
	if nongNghiep.Metadata["comparison"] != "below" {
		t.Errorf("comparison = %q, want below", nongNghiep.Metadata["comparison"])
	}
	for _, tg := range targets {
		if tg.Unit != "%" {
			t.Errorf("unit = %q, want %%", tg.Unit)
		}
	}
}

func TestExtract_DemoParagraph(t *testing.T) {
	targets := Extract(demoParagraph)
	if len(targets) < 8 {
		t.Fatalf("expected at least 8 targets, got %d: %+v", len(targets), targets)
	}
	for _, tg := range targets {
		if tg.Type != Quantitative {
			t.Errorf("target %q type = %s, want QUANTITATIVE", tg.NameVi, tg.Type)
		}
	}

	units := map[string]bool{}
	year2030 := false
	for _, tg := range targets {
		units[tg.Unit] = true
		if tg.Year != nil && *tg.Year == 2030 {
			year2030 = true
		}
	}
	for _, want := range []string{"%", "%/năm", "USD", "km"} {
		if !units[want] {
			t.Errorf("missing unit %q in %v", want, units)
		}
	}
	if !year2030 {
		t.Errorf("no target resolved year 2030")
	}
}

func TestExtract_Idempotent(t *testing.T) {
	a := Extract(demoParagraph)
	b := Extract(demoParagraph)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("extraction is not order-stable")
	}
}

func TestExtract_DeduplicatesIdenticalClauses(t *testing.T) {
	text := "Tỷ lệ che phủ rừng ổn định ở mức 42%.\nTỷ lệ che phủ rừng ổn định ở mức 42%."
	targets := Extract(text)
	if len(targets) != 1 {
		t.Fatalf("expected duplicate clauses to collapse to 1 target, got %d", len(targets))
	}
}

func TestExtract_PeriodIsNotARange(t *testing.T) {
	targets := Extract("Tổng vốn đầu tư toàn xã hội giai đoạn 2021 - 2025 đạt khoảng 3.000 nghìn tỷ đồng.")
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d: %+v", len(targets), targets)
	}
	tg := targets[0]
	if tg.Min != nil || tg.Max != nil {
		t.Errorf("period years must not become a value range: min=%v max=%v", tg.Min, tg.Max)
	}
	if tg.Value == nil || *tg.Value != 3000 {
		t.Errorf("value = %v, want 3000", tg.Value)
	}
	if tg.Unit != "nghìn tỷ đồng" {
		t.Errorf("unit = %q, want nghìn tỷ đồng", tg.Unit)
	}
	if tg.Year == nil || *tg.Year != 2025 {
		t.Errorf("year = %v, want period end 2025", tg.Year)
	}
	if tg.Metadata["period_start"] != "2021" || tg.Metadata["period_end"] != "2025" {
		t.Errorf("period metadata = %v", tg.Metadata)
	}
}

func TestExtract_YearSpanAfterTuDenIsDropped(t *testing.T) {
	targets := Extract("Kế hoạch thực hiện từ 2021 đến 2025 trên địa bàn toàn tỉnh.")
	if len(targets) != 0 {
		t.Fatalf("a bare timeframe must not produce targets, got %+v", targets)
	}
}

func TestExtract_RealRangeAboveYearBand(t *testing.T) {
	targets := Extract("Công suất điện gió đạt 2.000 - 2.500 MW.")
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	tg := targets[0]
	if tg.Min == nil || *tg.Min != 2000 || tg.Max == nil || *tg.Max != 2500 {
		t.Errorf("range = [%v, %v], want [2000, 2500]", tg.Min, tg.Max)
	}
	if tg.Unit != "MW" {
		t.Errorf("unit = %q, want MW", tg.Unit)
	}
}

func TestExtract_NoNumbersNoTargets(t *testing.T) {
	targets := Extract("Nâng cao chất lượng nguồn nhân lực, bảo đảm quốc phòng an ninh.")
	if len(targets) != 0 {
		t.Fatalf("qualitative prose must not produce targets, got %+v", targets)
	}
}

func TestExtract_NameFromPostNumberPhrase(t *testing.T) {
	targets := Extract("Có khoảng 5.000 km đường bộ cao tốc.")
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	tg := targets[0]
	if tg.NameVi != "đường bộ cao tốc" {
		t.Errorf("name = %q, want đường bộ cao tốc", tg.NameVi)
	}
	if tg.Value == nil || *tg.Value != 5000 {
		t.Errorf("value = %v, want 5000", tg.Value)
	}
	if tg.Unit != "km" {
		t.Errorf("unit = %q, want km", tg.Unit)
	}
}

func TestParseType_Defaults(t *testing.T) {
	if ParseType("QUALITATIVE") != Qualitative {
		t.Errorf("QUALITATIVE not recognized")
	}
	if ParseType("milestone") != Milestone {
		t.Errorf("lowercase milestone not recognized")
	}
	if ParseType("") != Quantitative || ParseType("nonsense") != Quantitative {
		t.Errorf("unrecognized types must default to QUANTITATIVE")
	}
}
