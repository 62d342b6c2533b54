package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// FinancialDataService fetches structured statements from the financial
// data service. Periods are accepted in either dashed or compact form and
// normalized before the wire call.
type FinancialDataService interface {
	// GetIncomeStatement fetches one period's income statement.
	GetIncomeStatement(ctx context.Context, stockCode, reportPeriod string) (*models.IncomeStatement, error)

	// GetBalanceSheet fetches one period's balance sheet.
	GetBalanceSheet(ctx context.Context, stockCode, reportPeriod string) (*models.BalanceSheet, error)

	// GetCashFlow fetches one period's cash flow statement.
	GetCashFlow(ctx context.Context, stockCode, reportPeriod string) (*models.CashFlow, error)

	// GetHistoricalPeriods lists up to count prior report periods,
	// newest first, excluding currentPeriod.
	GetHistoricalPeriods(ctx context.Context, stockCode, currentPeriod string, count int) ([]string, error)

	// GetCompleteData fetches all three statements, optionally with the
	// prior-year comparison set.
	GetCompleteData(ctx context.Context, stockCode, reportPeriod string, includePrevious bool) (*models.CompleteData, error)

	// HealthCheck verifies the data service is reachable
	HealthCheck(ctx context.Context) error
}
