package indicators

import (
	"strings"
	"testing"

	"github.com/ternarybob/finreview/internal/models"
)

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		name string
		v    *float64
		want string
	}{
		{"hundred millions", models.Float(1.23e8), "1.23亿"},
		{"billions", models.Float(9.876e9), "98.76亿"},
		{"negative ten thousands", models.Float(-5e4), "-5.00万"},
		{"plain", models.Float(123.456), "123.46"},
		{"zero", models.Float(0), "0.00"},
		{"null", nil, "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLargeNumber(tt.v); got != tt.want {
				t.Errorf("FormatLargeNumber() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRatioValue(t *testing.T) {
	tests := []struct {
		name string
		v    *float64
		unit string
		want string
	}{
		{"percent", models.Float(13.64), "%", "13.64%"},
		{"times per year", models.Float(2.1429), "次", "2.1429次/年"},
		{"multiple", models.Float(1.2), "倍", "1.2000x"},
		{"no unit", models.Float(5), "", "5"},
		{"null", nil, "%", "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRatioValue(tt.v, tt.unit); got != tt.want {
				t.Errorf("FormatRatioValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCoreLine(t *testing.T) {
	tests := []struct {
		name string
		ind  models.Indicator
		want string
	}{
		{
			"with growth",
			models.Indicator{Name: "营业收入", DisplayFormat: "12.00亿", GrowthRate: models.Float(20)},
			"- 营业收入: 12.00亿元，同比增长 +20.00%",
		},
		{
			"decline",
			models.Indicator{Name: "净利润", DisplayFormat: "5000.00万", GrowthRate: models.Float(-3.5)},
			"- 净利润: 5000.00万元，同比增长 -3.50%",
		},
		{
			"no previous period",
			models.Indicator{Name: "净利润", DisplayFormat: "5000.00万"},
			"- 净利润: 5000.00万元",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCoreLine(tt.ind); got != tt.want {
				t.Errorf("FormatCoreLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAuxiliaryLine(t *testing.T) {
	tests := []struct {
		name string
		ind  models.Indicator
		want string
	}{
		{
			"expense ratio with change",
			models.Indicator{Name: "研发费用", Ratio: models.Float(10), RatioChange: models.Float(-1.5)},
			"- 研发费用: 10.00%，变动 -1.50pp",
		},
		{
			"expense ratio without change",
			models.Indicator{Name: "销售费用", Ratio: models.Float(5)},
			"- 销售费用: 5.00%",
		},
		{
			"margin with change",
			models.Indicator{Name: "毛利率", Unit: "%", Current: models.Float(40), Change: models.Float(5)},
			"- 毛利率: 40.00%，变动 +5.00pp",
		},
		{
			"margin unavailable",
			models.Indicator{Name: "毛利率", Unit: "%"},
			"- 毛利率: N/A",
		},
		{
			"amount with growth",
			models.Indicator{Name: "研发费用", Unit: "元", DisplayFormat: "1.00亿", GrowthRate: models.Float(25)},
			"- 研发费用: 1.00亿元，增长 +25.00%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAuxiliaryLine(tt.ind); got != tt.want {
				t.Errorf("FormatAuxiliaryLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatSpecificLine(t *testing.T) {
	with := models.Indicator{Name: "合同负债", DisplayFormat: "500.00", ChangeRate: models.Float(25)}
	if got, want := FormatSpecificLine(with), "- 合同负债: 500.00元，变化 +25.00%"; got != want {
		t.Errorf("FormatSpecificLine() = %q, want %q", got, want)
	}
	without := models.Indicator{Name: "存货", DisplayFormat: "300.00"}
	if got, want := FormatSpecificLine(without), "- 存货: 300.00元"; got != want {
		t.Errorf("FormatSpecificLine() = %q, want %q", got, want)
	}
}

func TestFormatIndicators(t *testing.T) {
	set := &models.IndicatorSet{
		Core: []models.Indicator{
			{Name: "营业收入", DisplayFormat: "12.00亿", GrowthRate: models.Float(20)},
		},
		Auxiliary: []models.Indicator{
			{Name: "毛利率", Unit: "%", Current: models.Float(40)},
		},
		Specific: []models.Indicator{
			{Name: "合同负债", DisplayFormat: "5.00万", ChangeRate: models.Float(25)},
		},
	}

	want := "### 核心指标\n" +
		"- 营业收入: 12.00亿元，同比增长 +20.00%\n" +
		"\n### 辅助指标\n" +
		"- 毛利率: 40.00%\n" +
		"\n### 个性化指标\n" +
		"- 合同负债: 5.00万元，变化 +25.00%"
	if got := FormatIndicators(set); got != want {
		t.Errorf("FormatIndicators() = %q, want %q", got, want)
	}

	if got := FormatIndicators(&models.IndicatorSet{}); got != "" {
		t.Errorf("empty set rendered %q", got)
	}
}

func TestFormatRatios(t *testing.T) {
	income, balance, cashflow, prevBalance := annualStatements()
	report := ComputeRatios(income, balance, cashflow, prevBalance, "2024-12-31")
	out := FormatRatios(report)

	wantLines := []string{
		"【盈利能力】",
		"  ✅ 毛利率: 40.00%",
		"  ✅ 总资产报酬率: 10.79%",
		"       ├ EBIT: 205.00  | 平均总资产: 1900.00",
		"  ✅ 净资产收益率(ROE): 13.64%",
		"       ├ 净利润(年化): 150.00  | 平均净资产: 1100.00",
		"【营运效率】",
		"  ✅ 存货周转率: 2.1429次/年",
		"【偿债能力】",
		"  ✅ 流动比率: 2.0000x",
		"       ├ 短期借款: 200.00  长期借款: 100.00",
		"【现金质量】",
		"       ├ 经营现金流: 324.00  | 核心利润: 270.00",
		"【杜邦分析】",
		"  ✅ 杜邦分析法: 13.64%",
		"       ├ 净利润率: 15.00%",
		"       ├ 总资产周转率: 0.5263次/年",
		"       ├ 权益乘数: 1.7273x",
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line) {
			t.Errorf("output missing line %q\n%s", line, out)
		}
	}

	// Section order
	order := []string{"【盈利能力】", "【营运效率】", "【偿债能力】", "【现金质量】", "【杜邦分析】"}
	last := -1
	for _, header := range order {
		idx := strings.Index(out, header)
		if idx <= last {
			t.Errorf("section %s out of order", header)
		}
		last = idx
	}

	if strings.Contains(out, "(已年化)") {
		t.Errorf("annual report should not carry the annualized mark")
	}
}

func TestFormatRatiosUnavailable(t *testing.T) {
	report := ComputeRatios(nil, nil, nil, nil, "2024-12-31")
	out := FormatRatios(report)

	if !strings.Contains(out, "  ❌ 毛利率: N/A") {
		t.Errorf("unavailable ratio not marked:\n%s", out)
	}
	if strings.Contains(out, "✅") {
		t.Errorf("empty statements produced an available ratio:\n%s", out)
	}
	if got := FormatRatios(nil); got != "" {
		t.Errorf("nil report rendered %q", got)
	}
}

func TestFormatRatiosAnnualizedMark(t *testing.T) {
	income := &models.IncomeStatement{
		Revenue:   models.Float(250),
		Cost:      models.Float(150),
		NetProfit: models.Float(40),
	}
	balance := &models.BalanceSheet{
		TotalAssets: models.Float(2000),
		TotalEquity: models.Float(1000),
	}
	report := ComputeRatios(income, balance, nil, nil, "2024-03-31")
	out := FormatRatios(report)

	if !strings.Contains(out, "  ✅ 净资产收益率(ROE): 16.00%  (已年化)") {
		t.Errorf("annualized roe line missing:\n%s", out)
	}
	if strings.Contains(out, "毛利率: 40.00%  (已年化)") {
		t.Errorf("margin should not carry the annualized mark:\n%s", out)
	}
}
