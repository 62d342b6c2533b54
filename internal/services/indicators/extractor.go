package indicators

import (
	"github.com/ternarybob/finreview/internal/models"
)

// Extract computes the priority indicators from current and optional
// previous period statements. Indicators whose current value is missing are
// omitted; a previous-period gap only suppresses the derived deltas.
func Extract(profile *models.IndustryProfile, current, previous *models.FinancialData) *models.IndicatorSet {
	set := &models.IndicatorSet{}
	if profile != nil {
		set.Industry = profile.Code
	}
	if current == nil {
		return set
	}

	var prevIncome *models.IncomeStatement
	var prevBalance *models.BalanceSheet
	if previous != nil {
		prevIncome = previous.IncomeStatement
		prevBalance = previous.BalanceSheet
	}

	set.Core = extractCore(current.IncomeStatement, prevIncome)
	set.Auxiliary = extractAuxiliary(current.IncomeStatement, prevIncome)
	set.Specific = extractSpecific(current.BalanceSheet, prevBalance)
	return set
}

// extractCore builds the growth indicators: revenue, net profit, and net
// profit attributable to the parent.
func extractCore(current, previous *models.IncomeStatement) []models.Indicator {
	if current == nil {
		return nil
	}
	if previous == nil {
		previous = &models.IncomeStatement{}
	}

	var out []models.Indicator
	add := func(key, name string, cur, prev *float64) {
		if cur == nil {
			return
		}
		out = append(out, models.Indicator{
			Key:           key,
			Name:          name,
			Current:       cur,
			Previous:      prev,
			GrowthRate:    GrowthRate(cur, prev),
			Unit:          "元",
			DisplayFormat: FormatLargeNumber(cur),
		})
	}

	add("revenue", "营业收入", current.Revenue, previous.Revenue)
	add("net_profit", "净利润", current.NetProfit, previous.NetProfit)
	add("net_profit_parent", "归母净利润", current.NetProfitParent, previous.NetProfitParent)
	return out
}

// extractAuxiliary builds the margin and expense-ratio indicators.
func extractAuxiliary(current, previous *models.IncomeStatement) []models.Indicator {
	if current == nil {
		return nil
	}
	if previous == nil {
		previous = &models.IncomeStatement{}
	}

	var out []models.Indicator

	curMargin := grossMargin(current)
	if curMargin != nil {
		prevMargin := grossMargin(previous)
		ind := models.Indicator{
			Key:      "gross_margin",
			Name:     "毛利率",
			Current:  curMargin,
			Previous: prevMargin,
			Unit:     "%",
		}
		if prevMargin != nil {
			change := roundTo(*curMargin-*prevMargin, 2)
			ind.Change = &change
		}
		out = append(out, ind)
	}

	if ind := expenseIndicator("rd_expense", "研发费用", current.RDExpense, previous.RDExpense, current.Revenue, previous.Revenue, true); ind != nil {
		out = append(out, *ind)
	}
	if ind := expenseIndicator("sales_expense", "销售费用", current.SalesExpense, previous.SalesExpense, current.Revenue, previous.Revenue, false); ind != nil {
		out = append(out, *ind)
	}
	return out
}

// extractSpecific builds the business-model indicators from the balance
// sheet: contract liabilities for subscription models, inventory for
// hardware models.
func extractSpecific(current, previous *models.BalanceSheet) []models.Indicator {
	if current == nil {
		return nil
	}
	if previous == nil {
		previous = &models.BalanceSheet{}
	}

	var out []models.Indicator
	add := func(key, name string, cur, prev *float64) {
		if cur == nil {
			return
		}
		ind := models.Indicator{
			Key:           key,
			Name:          name,
			Current:       cur,
			Previous:      prev,
			ChangeRate:    GrowthRate(cur, prev),
			Unit:          "元",
			DisplayFormat: FormatLargeNumber(cur),
		}
		if prev != nil {
			amount := *cur - *prev
			ind.ChangeAmount = &amount
		}
		out = append(out, ind)
	}

	add("contract_liability", "合同负债", current.ContractLiability, previous.ContractLiability)
	add("inventory", "存货", current.Inventory, previous.Inventory)
	return out
}

// grossMargin is (revenue − cost) / revenue × 100 rounded to two places.
// Both lines must be present and non-zero.
func grossMargin(s *models.IncomeStatement) *float64 {
	if s == nil || s.Revenue == nil || s.Cost == nil {
		return nil
	}
	rev, cost := *s.Revenue, *s.Cost
	if rev == 0 || cost == 0 {
		return nil
	}
	v := roundTo((rev-cost)/rev*100, 2)
	return &v
}

// expenseIndicator builds one expense line with its revenue ratio. Requires
// the expense and a non-zero revenue; the previous-period ratio needs both
// previous lines.
func expenseIndicator(key, name string, expense, prevExpense, revenue, prevRevenue *float64, withGrowth bool) *models.Indicator {
	if expense == nil || revenue == nil || *revenue == 0 {
		return nil
	}

	ratio := *expense / *revenue * 100
	ind := &models.Indicator{
		Key:           key,
		Name:          name,
		Current:       expense,
		Previous:      prevExpense,
		Ratio:         &ratio,
		Unit:          "元",
		DisplayFormat: FormatLargeNumber(expense),
	}
	if withGrowth {
		ind.GrowthRate = GrowthRate(expense, prevExpense)
	}
	if prevExpense != nil && prevRevenue != nil && *prevRevenue != 0 {
		prevRatio := *prevExpense / *prevRevenue * 100
		change := ratio - prevRatio
		ind.RatioPrevious = &prevRatio
		ind.RatioChange = &change
	}
	return ind
}
