package indicators

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ternarybob/finreview/internal/models"
)

// FormatLargeNumber renders an amount with 亿/万 scaling and a sign prefix.
// Null renders as N/A.
func FormatLargeNumber(v *float64) string {
	if v == nil {
		return "N/A"
	}
	abs := math.Abs(*v)
	sign := ""
	if *v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e8:
		return fmt.Sprintf("%s%.2f亿", sign, abs/1e8)
	case abs >= 1e4:
		return fmt.Sprintf("%s%.2f万", sign, abs/1e4)
	default:
		return fmt.Sprintf("%s%.2f", sign, abs)
	}
}

// FormatRatioValue renders one ratio value with its unit convention. Null
// renders as N/A.
func FormatRatioValue(v *float64, unit string) string {
	if v == nil {
		return "N/A"
	}
	switch unit {
	case "%":
		return fmt.Sprintf("%.2f%%", *v)
	case "倍":
		return fmt.Sprintf("%.4fx", *v)
	case "次":
		return fmt.Sprintf("%.4f次/年", *v)
	default:
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
}

// FormatCoreLine renders one core indicator as a display line. A missing
// growth rate drops the delta clause.
func FormatCoreLine(ind models.Indicator) string {
	line := fmt.Sprintf("- %s: %s元", ind.Name, ind.DisplayFormat)
	if ind.GrowthRate != nil {
		line += fmt.Sprintf("，同比增长 %+.2f%%", *ind.GrowthRate)
	}
	return line
}

// FormatAuxiliaryLine renders one auxiliary indicator: expense indicators
// show their revenue ratio, margins show the percentage directly.
func FormatAuxiliaryLine(ind models.Indicator) string {
	if ind.Ratio != nil {
		line := fmt.Sprintf("- %s: %.2f%%", ind.Name, *ind.Ratio)
		if ind.RatioChange != nil {
			line += fmt.Sprintf("，变动 %+.2fpp", *ind.RatioChange)
		}
		return line
	}
	if ind.Unit == "%" {
		if ind.Current == nil {
			return fmt.Sprintf("- %s: N/A", ind.Name)
		}
		line := fmt.Sprintf("- %s: %.2f%%", ind.Name, *ind.Current)
		if ind.Change != nil {
			line += fmt.Sprintf("，变动 %+.2fpp", *ind.Change)
		}
		return line
	}
	line := fmt.Sprintf("- %s: %s元", ind.Name, ind.DisplayFormat)
	if ind.GrowthRate != nil {
		line += fmt.Sprintf("，增长 %+.2f%%", *ind.GrowthRate)
	}
	return line
}

// FormatSpecificLine renders one business-model indicator.
func FormatSpecificLine(ind models.Indicator) string {
	line := fmt.Sprintf("- %s: %s元", ind.Name, ind.DisplayFormat)
	if ind.ChangeRate != nil {
		line += fmt.Sprintf("，变化 %+.2f%%", *ind.ChangeRate)
	}
	return line
}

// FormatIndicators renders an indicator set as sectioned display text.
// Empty buckets are skipped; an entirely empty set renders as "".
func FormatIndicators(set *models.IndicatorSet) string {
	if set.IsEmpty() {
		return ""
	}

	var lines []string
	if len(set.Core) > 0 {
		lines = append(lines, "### 核心指标")
		for _, ind := range set.Core {
			lines = append(lines, FormatCoreLine(ind))
		}
	}
	if len(set.Auxiliary) > 0 {
		lines = append(lines, "\n### 辅助指标")
		for _, ind := range set.Auxiliary {
			lines = append(lines, FormatAuxiliaryLine(ind))
		}
	}
	if len(set.Specific) > 0 {
		lines = append(lines, "\n### 个性化指标")
		for _, ind := range set.Specific {
			lines = append(lines, FormatSpecificLine(ind))
		}
	}
	return strings.Join(lines, "\n")
}

var ratioSections = []struct {
	name string
	keys []string
}{
	{"盈利能力", []string{models.RatioGrossMargin, models.RatioCoreProfitMargin, models.RatioReturnOnTotalAssets, models.RatioReturnOnEquity}},
	{"营运效率", []string{models.RatioInventoryTurnover, models.RatioFixedAssetTurnover, models.RatioOperatingAssetTurnover}},
	{"偿债能力", []string{models.RatioCurrentRatio, models.RatioDebtToAsset, models.RatioFinancialLiability, models.RatioOperatingLiability}},
	{"现金质量", []string{models.RatioCoreProfitCash}},
	{"杜邦分析", []string{models.RatioDupont}},
}

var financialLiabilityLabels = []struct{ key, label string }{
	{"short_term_borrowing", "短期借款"},
	{"trading_financial_liabilities", "交易性金融负债"},
	{"current_noncurrent_liabilities", "一年内到期非流动负债"},
	{"long_term_borrowing", "长期借款"},
	{"bonds_payable", "应付债券"},
	{"lease_liabilities", "租赁负债"},
}

// FormatRatios renders a ratio report grouped by analysis section, with an
// availability mark per ratio and the key intermediates under it.
func FormatRatios(report *models.RatioReport) string {
	if report == nil {
		return ""
	}

	var lines []string
	for i, section := range ratioSections {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("【%s】", section.name))
		for _, key := range section.keys {
			if r := report.Get(key); r != nil {
				lines = append(lines, formatRatioLines(r)...)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func formatRatioLines(r *models.RatioValue) []string {
	status := "❌"
	if r.Available {
		status = "✅"
	}
	suffix := ""
	if r.Annualized {
		suffix = "  (已年化)"
	}
	lines := []string{fmt.Sprintf("  %s %s: %s%s", status, r.Name, FormatRatioValue(r.Value, r.Unit), suffix)}

	switch r.Key {
	case models.RatioReturnOnTotalAssets:
		lines = append(lines, fmt.Sprintf("       ├ EBIT: %s  | 平均总资产: %s",
			FormatLargeNumber(metricValue(r, "ebit")), FormatLargeNumber(metricValue(r, "avg_total_assets"))))
	case models.RatioReturnOnEquity:
		lines = append(lines, fmt.Sprintf("       ├ 净利润(年化): %s  | 平均净资产: %s",
			FormatLargeNumber(metricValue(r, "net_profit_annualized")), FormatLargeNumber(metricValue(r, "avg_equity"))))
	case models.RatioCoreProfitCash:
		lines = append(lines, fmt.Sprintf("       ├ 经营现金流: %s  | 核心利润: %s",
			FormatLargeNumber(metricValue(r, "net_operating_cash_flow")), FormatLargeNumber(metricValue(r, "core_profit"))))
	case models.RatioFinancialLiability:
		var parts []string
		for _, entry := range financialLiabilityLabels {
			if v, ok := r.Components[entry.key]; ok {
				parts = append(parts, fmt.Sprintf("%s: %s", entry.label, FormatLargeNumber(&v)))
			}
		}
		if len(parts) > 0 {
			lines = append(lines, "       ├ "+strings.Join(parts, "  "))
		}
	case models.RatioDupont:
		for _, factor := range r.Factors {
			lines = append(lines, fmt.Sprintf("       ├ %s: %s", factor.Name, FormatRatioValue(factor.Value, factor.Unit)))
		}
	}
	return lines
}

func metricValue(r *models.RatioValue, key string) *float64 {
	if v, ok := r.Metrics[key]; ok {
		return &v
	}
	return nil
}
