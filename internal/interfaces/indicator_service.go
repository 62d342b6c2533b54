package interfaces

import (
	"github.com/ternarybob/finreview/internal/models"
)

// IndicatorService computes objective indicators from structured
// statements. All methods are pure; missing inputs degrade to null values,
// never errors.
type IndicatorService interface {
	// Extract computes the profile's priority indicators from current and
	// optional previous period data.
	Extract(profile *models.IndustryProfile, current *models.FinancialData, previous *models.FinancialData) *models.IndicatorSet

	// ComputeRatios computes the thirteen financial ratios for one period.
	// prevBalance supplies the opening side of balance averages.
	ComputeRatios(income *models.IncomeStatement, balance *models.BalanceSheet, cashflow *models.CashFlow, prevBalance *models.BalanceSheet, period string) *models.RatioReport

	// FormatIndicators renders an indicator set as display text.
	FormatIndicators(set *models.IndicatorSet) string

	// FormatRatios renders a ratio report as display text, grouped by
	// analysis section.
	FormatRatios(report *models.RatioReport) string
}
