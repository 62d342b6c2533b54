// Package indicators computes objective financial indicators and the
// thirteen core ratios from structured statements, keeping arithmetic out
// of the language model. All computation is pure; missing inputs degrade to
// null values, never errors.
package indicators

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// Service implements IndicatorService.
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.IndicatorService = (*Service)(nil)

// NewService creates an indicator service.
func NewService(logger arbor.ILogger) interfaces.IndicatorService {
	return &Service{logger: logger}
}

// Extract computes the profile's priority indicators from current and
// optional previous period data.
func (s *Service) Extract(profile *models.IndustryProfile, current, previous *models.FinancialData) *models.IndicatorSet {
	set := Extract(profile, current, previous)
	s.logger.Debug().
		Str("industry", set.Industry).
		Int("core", len(set.Core)).
		Int("auxiliary", len(set.Auxiliary)).
		Int("specific", len(set.Specific)).
		Msg("Extracted priority indicators")
	return set
}

// ComputeRatios computes the thirteen financial ratios for one period.
func (s *Service) ComputeRatios(income *models.IncomeStatement, balance *models.BalanceSheet, cashflow *models.CashFlow, prevBalance *models.BalanceSheet, period string) *models.RatioReport {
	report := ComputeRatios(income, balance, cashflow, prevBalance, period)

	available := report.AvailableCount()
	if available < len(report.Ratios) {
		s.logger.Warn().
			Str("period", period).
			Int("available", available).
			Int("total", len(report.Ratios)).
			Msg("Some ratios could not be computed from the available lines")
	} else {
		s.logger.Debug().
			Str("period", period).
			Int("available", available).
			Msg("Computed financial ratios")
	}
	return report
}

// FormatIndicators renders an indicator set as display text.
func (s *Service) FormatIndicators(set *models.IndicatorSet) string {
	return FormatIndicators(set)
}

// FormatRatios renders a ratio report as display text.
func (s *Service) FormatRatios(report *models.RatioReport) string {
	return FormatRatios(report)
}
