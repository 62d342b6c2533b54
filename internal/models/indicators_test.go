package models

import "testing"

func TestIndicatorSetIsEmpty(t *testing.T) {
	var nilSet *IndicatorSet
	if !nilSet.IsEmpty() {
		t.Error("nil set should be empty")
	}
	if !(&IndicatorSet{Industry: "computer"}).IsEmpty() {
		t.Error("set with no indicators should be empty")
	}
	s := &IndicatorSet{Core: []Indicator{{Key: "revenue"}}}
	if s.IsEmpty() {
		t.Error("set with a core indicator should not be empty")
	}
}

func TestSpecificByKey(t *testing.T) {
	s := &IndicatorSet{
		Specific: []Indicator{
			{Key: "contract_liability", Name: "合同负债"},
			{Key: "inventory", Name: "存货"},
		},
	}

	if got := s.SpecificByKey("inventory"); got == nil || got.Name != "存货" {
		t.Errorf("SpecificByKey(inventory) = %v", got)
	}
	if got := s.SpecificByKey("missing"); got != nil {
		t.Errorf("SpecificByKey(missing) = %v, want nil", got)
	}
}

func TestRatioReportGet(t *testing.T) {
	r := &RatioReport{
		Ratios: []RatioValue{
			{Key: RatioGrossMargin, Name: "毛利率", Value: Float(25.5), Available: true},
			{Key: RatioCurrentRatio, Name: "流动比率", Available: false},
		},
	}

	if got := r.Get(RatioGrossMargin); got == nil || *got.Value != 25.5 {
		t.Errorf("Get(gross_margin) = %v", got)
	}
	if got := r.Get("nope"); got != nil {
		t.Errorf("Get(nope) = %v, want nil", got)
	}
	if r.AvailableCount() != 1 {
		t.Errorf("AvailableCount = %d, want 1", r.AvailableCount())
	}
}

func TestByPriority(t *testing.T) {
	p := &IndustryProfile{
		Indicators: []IndicatorSpec{
			{Key: "revenue_growth", Priority: PriorityCore},
			{Key: "gross_margin", Priority: PriorityAuxiliary},
			{Key: "net_profit_growth", Priority: PriorityCore},
		},
	}

	core := p.ByPriority(PriorityCore)
	if len(core) != 2 || core[0].Key != "revenue_growth" || core[1].Key != "net_profit_growth" {
		t.Errorf("ByPriority(core) = %v, want declaration order preserved", core)
	}
	if len(p.ByPriority(PrioritySpecific)) != 0 {
		t.Error("ByPriority(specific) should be empty")
	}
}
