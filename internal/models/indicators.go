package models

const (
	// PriorityCore indicators drive the industry thesis (growth rates)
	PriorityCore = "core"
	// PriorityAuxiliary indicators qualify the thesis (margins, expense ratios)
	PriorityAuxiliary = "auxiliary"
	// PrioritySpecific indicators depend on the business model
	PrioritySpecific = "specific"
)

// Indicator is one computed indicator. Which numeric fields are set depends
// on the indicator family: growth indicators carry current/previous/
// growth_rate, margins carry current/previous/change, expense ratios carry
// ratio/ratio_previous/ratio_change, balance-change indicators carry
// change_rate/change_amount. Null means the underlying line was missing.
type Indicator struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Current       *float64 `json:"current,omitempty"`
	Previous      *float64 `json:"previous,omitempty"`
	GrowthRate    *float64 `json:"growth_rate,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangeRate    *float64 `json:"change_rate,omitempty"`
	ChangeAmount  *float64 `json:"change_amount,omitempty"`
	Ratio         *float64 `json:"ratio,omitempty"`
	RatioPrevious *float64 `json:"ratio_previous,omitempty"`
	RatioChange   *float64 `json:"ratio_change,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	DisplayFormat string   `json:"display_format,omitempty"`
}

// IndicatorSet groups computed indicators by priority, preserving the
// extraction order within each bucket.
type IndicatorSet struct {
	Industry  string      `json:"industry"`
	Core      []Indicator `json:"core"`
	Auxiliary []Indicator `json:"auxiliary"`
	Specific  []Indicator `json:"specific"`
}

// IsEmpty reports whether no indicator could be computed at all.
func (s *IndicatorSet) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.Core) == 0 && len(s.Auxiliary) == 0 && len(s.Specific) == 0
}

// SpecificByKey returns the specific indicator with the given key, or nil.
func (s *IndicatorSet) SpecificByKey(key string) *Indicator {
	if s == nil {
		return nil
	}
	for i := range s.Specific {
		if s.Specific[i].Key == key {
			return &s.Specific[i]
		}
	}
	return nil
}

// Ratio keys in the fixed report order.
const (
	RatioGrossMargin            = "gross_margin"
	RatioCoreProfitMargin       = "core_profit_margin"
	RatioReturnOnTotalAssets    = "return_on_total_assets"
	RatioReturnOnEquity         = "return_on_equity"
	RatioInventoryTurnover      = "inventory_turnover"
	RatioFixedAssetTurnover     = "fixed_asset_turnover"
	RatioOperatingAssetTurnover = "operating_asset_turnover"
	RatioCurrentRatio           = "current_ratio"
	RatioDebtToAsset            = "debt_to_asset_ratio"
	RatioFinancialLiability     = "financial_liability_ratio"
	RatioOperatingLiability     = "operating_liability_ratio"
	RatioCoreProfitCash         = "core_profit_cash_ratio"
	RatioDupont                 = "dupont_analysis"
)

// RatioValue is one computed financial ratio. Value is null and Available
// false when any required line was missing or a divisor was zero.
type RatioValue struct {
	Key        string             `json:"key"`
	Name       string             `json:"name"`
	Formula    string             `json:"formula"`
	Value      *float64           `json:"value"`
	Unit       string             `json:"unit,omitempty"`
	Available  bool               `json:"available"`
	Annualized bool               `json:"annualized,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`    // intermediates such as ebit, avg_total_assets, core_profit
	Components map[string]float64 `json:"components,omitempty"` // liability breakdown for financial_liability_ratio
	Factors    []RatioFactor      `json:"factors,omitempty"`    // DuPont decomposition
}

// RatioFactor is one DuPont decomposition factor.
type RatioFactor struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Value   *float64 `json:"value"`
	Formula string   `json:"formula"`
	Unit    string   `json:"unit"`
}

// RatioReport holds all thirteen ratios in presentation order. Every key is
// always present; unavailable ratios carry a null value.
type RatioReport struct {
	Period string       `json:"period"`
	Ratios []RatioValue `json:"ratios"`
}

// Get returns the ratio with the given key, or nil.
func (r *RatioReport) Get(key string) *RatioValue {
	if r == nil {
		return nil
	}
	for i := range r.Ratios {
		if r.Ratios[i].Key == key {
			return &r.Ratios[i]
		}
	}
	return nil
}

// AvailableCount reports how many ratios could be computed.
func (r *RatioReport) AvailableCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for i := range r.Ratios {
		if r.Ratios[i].Available {
			n++
		}
	}
	return n
}
