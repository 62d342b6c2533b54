package indicators

import (
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/models"
)

// ComputeRatios computes the thirteen financial ratios for one period.
// Quarterly periods annualize the flow lines; prevBalance supplies the
// opening side of balance-sheet averages and may be nil. Every ratio is
// always present in the report; unavailable ones carry a null value.
func ComputeRatios(income *models.IncomeStatement, balance *models.BalanceSheet, cashflow *models.CashFlow, prevBalance *models.BalanceSheet, period string) *models.RatioReport {
	if income == nil {
		income = &models.IncomeStatement{}
	}
	if balance == nil {
		balance = &models.BalanceSheet{}
	}
	if cashflow == nil {
		cashflow = &models.CashFlow{}
	}
	if prevBalance == nil {
		prevBalance = &models.BalanceSheet{}
	}

	c := &calculator{
		income:      income,
		balance:     balance,
		cashflow:    cashflow,
		prevBalance: prevBalance,
		quarterly:   common.IsQuarterly(period),
		ann:         common.AnnualizationFactor(period),
	}

	return &models.RatioReport{
		Period: period,
		Ratios: []models.RatioValue{
			c.grossMargin(),
			c.coreProfitMargin(),
			c.returnOnTotalAssets(),
			c.returnOnEquity(),
			c.inventoryTurnover(),
			c.fixedAssetTurnover(),
			c.operatingAssetTurnover(),
			c.currentRatio(),
			c.debtToAssetRatio(),
			c.financialLiabilityRatio(),
			c.operatingLiabilityRatio(),
			c.coreProfitCashRatio(),
			c.dupontAnalysis(),
		},
	}
}

type calculator struct {
	income      *models.IncomeStatement
	balance     *models.BalanceSheet
	cashflow    *models.CashFlow
	prevBalance *models.BalanceSheet
	quarterly   bool
	ann         float64
}

// annualize scales a year-to-date flow to a full-year equivalent. Annual
// periods pass through unchanged.
func (c *calculator) annualize(v *float64) *float64 {
	if v == nil || !c.quarterly {
		return v
	}
	scaled := *v * c.ann
	return &scaled
}

// avgBalance averages one balance-sheet line over the period ends.
func (c *calculator) avgBalance(get func(*models.BalanceSheet) *float64) *float64 {
	return Avg(get(c.balance), get(c.prevBalance))
}

// coreProfit is revenue minus cost minus the four operating charges
// (business tax, sales, admin, and R&D expenses; missing charges count as
// zero). Null when revenue or cost is missing.
func (c *calculator) coreProfit() *float64 {
	if c.income.Revenue == nil || c.income.Cost == nil {
		return nil
	}
	v := *c.income.Revenue - *c.income.Cost -
		orZero(c.income.BusinessTax) - orZero(c.income.SalesExpense) -
		orZero(c.income.AdminExpense) - orZero(c.income.RDExpense)
	return &v
}

func (c *calculator) grossMargin() models.RatioValue {
	var grossProfit *float64
	if c.income.Revenue != nil && c.income.Cost != nil {
		v := *c.income.Revenue - *c.income.Cost
		grossProfit = &v
	}
	value := SafeDivide(grossProfit, c.income.Revenue, 100, 2)
	return models.RatioValue{
		Key:       models.RatioGrossMargin,
		Name:      "毛利率",
		Formula:   "(营业收入 - 营业成本) / 营业收入",
		Value:     value,
		Unit:      "%",
		Available: value != nil,
	}
}

func (c *calculator) coreProfitMargin() models.RatioValue {
	cp := c.coreProfit()
	value := SafeDivide(cp, c.income.Revenue, 100, 2)
	return models.RatioValue{
		Key:       models.RatioCoreProfitMargin,
		Name:      "核心利润率",
		Formula:   "(营业收入-营业成本-税金及附加-销售费用-管理费用-研发费用) / 营业收入",
		Value:     value,
		Unit:      "%",
		Available: value != nil,
		Metrics:   addMetric(nil, "core_profit", cp),
	}
}

// returnOnTotalAssets uses EBIT over average total assets. The interest
// component prefers the dedicated interest line; total finance expense is
// an approximation when only that is disclosed.
func (c *calculator) returnOnTotalAssets() models.RatioValue {
	interest := c.income.InterestExpense
	if interest == nil || *interest == 0 {
		interest = c.income.FinanceExpense
	}

	var ebit *float64
	if c.income.TotalProfit != nil {
		v := *c.income.TotalProfit + orZero(interest)
		ebit = &v
	}
	ebit = c.annualize(ebit)

	avgAssets := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.TotalAssets })
	value := SafeDivide(ebit, avgAssets, 100, 2)

	m := addMetric(nil, "ebit", ebit)
	m = addMetric(m, "avg_total_assets", avgAssets)
	return models.RatioValue{
		Key:        models.RatioReturnOnTotalAssets,
		Name:       "总资产报酬率",
		Formula:    "EBIT(年化) / 平均资产总额",
		Value:      value,
		Unit:       "%",
		Available:  value != nil,
		Annualized: c.quarterly,
		Metrics:    m,
	}
}

func (c *calculator) returnOnEquity() models.RatioValue {
	netProfit := c.annualize(c.income.NetProfit)
	avgEquity := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.TotalEquity })
	value := SafeDivide(netProfit, avgEquity, 100, 2)

	m := addMetric(nil, "net_profit_annualized", netProfit)
	m = addMetric(m, "avg_equity", avgEquity)
	return models.RatioValue{
		Key:        models.RatioReturnOnEquity,
		Name:       "净资产收益率(ROE)",
		Formula:    "净利润(年化) / 平均净资产",
		Value:      value,
		Unit:       "%",
		Available:  value != nil,
		Annualized: c.quarterly,
		Metrics:    m,
	}
}

func (c *calculator) inventoryTurnover() models.RatioValue {
	cost := c.annualize(c.income.Cost)
	avgInventory := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.Inventory })
	value := SafeDivide(cost, avgInventory, 1, 4)

	m := addMetric(nil, "cost_annualized", cost)
	m = addMetric(m, "avg_inventory", avgInventory)
	return models.RatioValue{
		Key:        models.RatioInventoryTurnover,
		Name:       "存货周转率",
		Formula:    "营业成本(年化) / 平均存货",
		Value:      value,
		Unit:       "次",
		Available:  value != nil,
		Annualized: c.quarterly,
		Metrics:    m,
	}
}

func (c *calculator) fixedAssetTurnover() models.RatioValue {
	revenue := c.annualize(c.income.Revenue)
	avgFixed := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.FixedAssets })
	value := SafeDivide(revenue, avgFixed, 1, 4)

	m := addMetric(nil, "revenue_annualized", revenue)
	m = addMetric(m, "avg_fixed_assets", avgFixed)
	return models.RatioValue{
		Key:        models.RatioFixedAssetTurnover,
		Name:       "固定资产周转率",
		Formula:    "营业收入(年化) / 平均固定资产净额",
		Value:      value,
		Unit:       "次",
		Available:  value != nil,
		Annualized: c.quarterly,
		Metrics:    m,
	}
}

func (c *calculator) operatingAssetTurnover() models.RatioValue {
	revenue := c.annualize(c.income.Revenue)
	opCurrent := operatingAssets(c.balance)
	avgOperating := Avg(opCurrent, operatingAssets(c.prevBalance))
	value := SafeDivide(revenue, avgOperating, 1, 4)

	m := addMetric(nil, "revenue_annualized", revenue)
	m = addMetric(m, "avg_operating_assets", avgOperating)
	m = addMetric(m, "operating_assets_current", opCurrent)
	return models.RatioValue{
		Key:        models.RatioOperatingAssetTurnover,
		Name:       "经营资产周转率",
		Formula:    "营业收入(年化) / 平均经营资产 (经营资产=资产总额-投资资产)",
		Value:      value,
		Unit:       "次",
		Available:  value != nil,
		Annualized: c.quarterly,
		Metrics:    m,
	}
}

func (c *calculator) currentRatio() models.RatioValue {
	value := SafeDivide(c.balance.CurrentAssets, c.balance.CurrentLiabilities, 1, 4)

	m := addMetric(nil, "current_assets", c.balance.CurrentAssets)
	m = addMetric(m, "current_liabilities", c.balance.CurrentLiabilities)
	return models.RatioValue{
		Key:       models.RatioCurrentRatio,
		Name:      "流动比率",
		Formula:   "流动资产 / 流动负债",
		Value:     value,
		Unit:      "倍",
		Available: value != nil,
		Metrics:   m,
	}
}

func (c *calculator) debtToAssetRatio() models.RatioValue {
	value := SafeDivide(c.balance.TotalLiabilities, c.balance.TotalAssets, 100, 2)

	m := addMetric(nil, "total_liabilities", c.balance.TotalLiabilities)
	m = addMetric(m, "total_assets", c.balance.TotalAssets)
	return models.RatioValue{
		Key:       models.RatioDebtToAsset,
		Name:      "资产负债率",
		Formula:   "负债合计 / 资产总计",
		Value:     value,
		Unit:      "%",
		Available: value != nil,
		Metrics:   m,
	}
}

func (c *calculator) financialLiabilityRatio() models.RatioValue {
	fin, components := c.financialLiabilities()
	value := SafeDivide(fin, c.balance.TotalAssets, 100, 2)

	m := addMetric(nil, "financial_liabilities", fin)
	m = addMetric(m, "total_assets", c.balance.TotalAssets)
	return models.RatioValue{
		Key:        models.RatioFinancialLiability,
		Name:       "资产金融性负债率",
		Formula:    "金融性负债(短期借款+应付债券+长期借款+租赁负债+...) / 资产总额",
		Value:      value,
		Unit:       "%",
		Available:  value != nil,
		Metrics:    m,
		Components: components,
	}
}

func (c *calculator) operatingLiabilityRatio() models.RatioValue {
	fin, _ := c.financialLiabilities()

	var operating *float64
	if c.balance.TotalLiabilities != nil && fin != nil {
		v := *c.balance.TotalLiabilities - *fin
		operating = &v
	}
	value := SafeDivide(operating, c.balance.TotalAssets, 100, 2)

	m := addMetric(nil, "operating_liabilities", operating)
	m = addMetric(m, "total_assets", c.balance.TotalAssets)
	return models.RatioValue{
		Key:       models.RatioOperatingLiability,
		Name:      "资产经营性负债率",
		Formula:   "经营性负债(负债合计-金融性负债) / 资产总额",
		Value:     value,
		Unit:      "%",
		Available: value != nil,
		Metrics:   m,
	}
}

func (c *calculator) coreProfitCashRatio() models.RatioValue {
	cp := c.coreProfit()
	value := SafeDivide(c.cashflow.NetOperatingCashFlow, cp, 1, 4)

	m := addMetric(nil, "net_operating_cash_flow", c.cashflow.NetOperatingCashFlow)
	m = addMetric(m, "core_profit", cp)
	return models.RatioValue{
		Key:       models.RatioCoreProfitCash,
		Name:      "核心利润获现率",
		Formula:   "经营活动现金流量净额 / 核心利润",
		Value:     value,
		Unit:      "倍",
		Available: value != nil,
		Metrics:   m,
	}
}

// dupontAnalysis decomposes ROE into net profit margin, asset turnover, and
// equity multiplier. Margin annualizes both sides so the factor cancels but
// the component rounding matches the standalone ratios.
func (c *calculator) dupontAnalysis() models.RatioValue {
	revenue := c.annualize(c.income.Revenue)
	netProfit := c.annualize(c.income.NetProfit)
	avgAssets := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.TotalAssets })
	avgEquity := c.avgBalance(func(b *models.BalanceSheet) *float64 { return b.TotalEquity })

	margin := SafeDivide(netProfit, revenue, 100, 2)
	turnover := SafeDivide(revenue, avgAssets, 1, 4)
	multiplier := SafeDivide(avgAssets, avgEquity, 1, 4)

	var roe *float64
	if margin != nil && turnover != nil && multiplier != nil {
		v := roundTo(*margin * *turnover * *multiplier, 2)
		roe = &v
	}

	return models.RatioValue{
		Key:        models.RatioDupont,
		Name:       "杜邦分析法",
		Formula:    "ROE = 净利润率 × 总资产周转率 × 权益乘数",
		Value:      roe,
		Unit:       "%",
		Available:  roe != nil,
		Annualized: c.quarterly,
		Factors: []models.RatioFactor{
			{Key: "net_profit_margin", Name: "净利润率", Value: margin, Formula: "净利润(年化) / 营业收入(年化)", Unit: "%"},
			{Key: "asset_turnover", Name: "总资产周转率", Value: turnover, Formula: "营业收入(年化) / 平均总资产", Unit: "次"},
			{Key: "equity_multiplier", Name: "权益乘数", Value: multiplier, Formula: "平均总资产 / 平均净资产", Unit: "倍"},
		},
	}
}

// financialLiabilities sums the interest-bearing liability lines that are
// present. Null when every line is missing, since the split cannot be made.
func (c *calculator) financialLiabilities() (*float64, map[string]float64) {
	lines := []struct {
		key string
		val *float64
	}{
		{"short_term_borrowing", c.balance.ShortTermBorrowing},
		{"trading_financial_liabilities", c.balance.TradingFinancialLiabilities},
		{"current_noncurrent_liabilities", c.balance.CurrentNoncurrentLiab},
		{"long_term_borrowing", c.balance.LongTermBorrowing},
		{"bonds_payable", c.balance.BondsPayable},
		{"lease_liabilities", c.balance.LeaseLiabilities},
	}

	var sum float64
	var components map[string]float64
	for _, line := range lines {
		if line.val == nil {
			continue
		}
		if components == nil {
			components = make(map[string]float64)
		}
		components[line.key] = *line.val
		sum += *line.val
	}
	if components == nil {
		return nil, nil
	}
	return &sum, components
}

// operatingAssets is total assets minus the investment asset lines that are
// present. Null without a total.
func operatingAssets(b *models.BalanceSheet) *float64 {
	if b == nil || b.TotalAssets == nil {
		return nil
	}
	invest := orZero(b.TradingFinancialAssets) + orZero(b.AvailableForSaleAssets) +
		orZero(b.HeldToMaturityInvestments) + orZero(b.LongTermEquityInvestment) +
		orZero(b.DebtInvestments) + orZero(b.OtherEquityInstrumentsInvest) +
		orZero(b.OtherNoncurrentFinancialAssets)
	v := *b.TotalAssets - invest
	return &v
}

func addMetric(m map[string]float64, key string, v *float64) map[string]float64 {
	if v == nil {
		return m
	}
	if m == nil {
		m = make(map[string]float64)
	}
	m[key] = *v
	return m
}
