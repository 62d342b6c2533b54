package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Financial statements arrive as JSON objects keyed either by semantic
// snake_case names or by exchange wire codes (income statement B-codes,
// balance sheet A-codes, cash flow C-codes). Decoding tries every alias for
// a field in order; absent or unconvertible values stay null, never zero.

// IncomeStatement holds the income statement lines the analyzers read.
type IncomeStatement struct {
	Revenue         *float64 `json:"revenue,omitempty"`           // 营业收入
	Cost            *float64 `json:"cost,omitempty"`              // 营业成本
	BusinessTax     *float64 `json:"business_tax,omitempty"`      // 税金及附加
	SalesExpense    *float64 `json:"sales_expense,omitempty"`     // 销售费用
	AdminExpense    *float64 `json:"admin_expense,omitempty"`     // 管理费用
	RDExpense       *float64 `json:"rd_expense,omitempty"`        // 研发费用
	FinanceExpense  *float64 `json:"finance_expense,omitempty"`   // 财务费用
	InterestExpense *float64 `json:"interest_expense,omitempty"`  // 利息费用
	TotalProfit     *float64 `json:"total_profit,omitempty"`      // 利润总额
	NetProfit       *float64 `json:"net_profit,omitempty"`        // 净利润
	NetProfitParent *float64 `json:"net_profit_parent,omitempty"` // 归母净利润
}

// BalanceSheet holds the balance sheet lines the analyzers read.
type BalanceSheet struct {
	TotalAssets        *float64 `json:"total_assets,omitempty"`        // 资产总计
	TotalLiabilities   *float64 `json:"total_liabilities,omitempty"`   // 负债合计
	TotalEquity        *float64 `json:"total_equity,omitempty"`        // 所有者权益合计
	CurrentAssets      *float64 `json:"current_assets,omitempty"`      // 流动资产合计
	CurrentLiabilities *float64 `json:"current_liabilities,omitempty"` // 流动负债合计
	Inventory          *float64 `json:"inventory,omitempty"`           // 存货
	FixedAssets        *float64 `json:"fixed_assets,omitempty"`        // 固定资产
	ContractLiability  *float64 `json:"contract_liability,omitempty"`  // 合同负债

	// Investment assets excluded from operating assets
	TradingFinancialAssets         *float64 `json:"trading_financial_assets,omitempty"`          // 交易性金融资产
	AvailableForSaleAssets         *float64 `json:"available_for_sale_assets,omitempty"`         // 可供出售金融资产
	HeldToMaturityInvestments      *float64 `json:"held_to_maturity_investments,omitempty"`      // 持有至到期投资
	LongTermEquityInvestment       *float64 `json:"long_term_equity_investment,omitempty"`       // 长期股权投资
	DebtInvestments                *float64 `json:"debt_investments,omitempty"`                  // 债权投资
	OtherEquityInstrumentsInvest   *float64 `json:"other_equity_instruments_invest,omitempty"`   // 其他权益工具投资
	OtherNoncurrentFinancialAssets *float64 `json:"other_noncurrent_financial_assets,omitempty"` // 其他非流动金融资产

	// Interest-bearing liabilities
	ShortTermBorrowing          *float64 `json:"short_term_borrowing,omitempty"`           // 短期借款
	TradingFinancialLiabilities *float64 `json:"trading_financial_liabilities,omitempty"`  // 交易性金融负债
	CurrentNoncurrentLiab       *float64 `json:"current_noncurrent_liabilities,omitempty"` // 一年内到期的非流动负债
	LongTermBorrowing           *float64 `json:"long_term_borrowing,omitempty"`            // 长期借款
	BondsPayable                *float64 `json:"bonds_payable,omitempty"`                  // 应付债券
	LeaseLiabilities            *float64 `json:"lease_liabilities,omitempty"`              // 租赁负债
}

// CashFlow holds the cash flow statement lines the analyzers read.
type CashFlow struct {
	NetOperatingCashFlow *float64 `json:"net_operating_cash_flow,omitempty"` // 经营活动产生的现金流量净额
	NetInvestingCashFlow *float64 `json:"net_investing_cash_flow,omitempty"` // 投资活动产生的现金流量净额
	NetFinancingCashFlow *float64 `json:"net_financing_cash_flow,omitempty"` // 筹资活动产生的现金流量净额
}

// FinancialData bundles the three statements for one period.
type FinancialData struct {
	IncomeStatement *IncomeStatement `json:"income_statement,omitempty"`
	BalanceSheet    *BalanceSheet    `json:"balance_sheet,omitempty"`
	CashFlow        *CashFlow        `json:"cash_flow,omitempty"`
}

// CompleteData is the complete-data service response: current period
// statements plus the prior-year comparison set when requested.
type CompleteData struct {
	FinancialData
	PreviousPeriod string         `json:"previous_period,omitempty"`
	PreviousData   *FinancialData `json:"previous_data,omitempty"`
}

// incomeAliases maps struct fields to accepted wire keys, most specific
// first. Codes follow the exchange disclosure taxonomy used by the data
// service.
var incomeAliases = map[string][]string{
	"revenue":           {"revenue", "b001101000"},
	"cost":              {"cost", "operating_cost", "b001201000"},
	"business_tax":      {"business_tax", "b001207000"},
	"sales_expense":     {"sales_expense", "b001209000"},
	"admin_expense":     {"admin_expense", "b001210000"},
	"rd_expense":        {"rd_expense", "b001216000"},
	"finance_expense":   {"finance_expense", "b001211000"},
	"interest_expense":  {"interest_expense", "b001211101"},
	"total_profit":      {"total_profit", "b001400000"},
	"net_profit":        {"net_profit", "b002000000"},
	"net_profit_parent": {"net_profit_parent", "b002000101"},
}

var balanceAliases = map[string][]string{
	"total_assets":        {"total_assets", "a001000000"},
	"total_liabilities":   {"total_liabilities", "a002000000"},
	"total_equity":        {"total_equity", "a003000000"},
	"current_assets":      {"current_assets", "a001100000"},
	"current_liabilities": {"current_liabilities", "a002100000"},
	"inventory":           {"inventory", "a001123000"},
	"fixed_assets":        {"fixed_assets", "a001212000"},
	"contract_liability":  {"contract_liability", "a002128000"},

	"trading_financial_assets":          {"trading_financial_assets", "a001109000"},
	"available_for_sale_assets":         {"available_for_sale_assets"},
	"held_to_maturity_investments":      {"held_to_maturity_investments"},
	"long_term_equity_investment":       {"long_term_equity_investment", "a001208000"},
	"debt_investments":                  {"debt_investments"},
	"other_equity_instruments_invest":   {"other_equity_instruments_invest"},
	"other_noncurrent_financial_assets": {"other_noncurrent_financial_assets"},

	"short_term_borrowing":           {"short_term_borrowing", "a002101000"},
	"trading_financial_liabilities":  {"trading_financial_liabilities"},
	"current_noncurrent_liabilities": {"current_noncurrent_liabilities", "a002125000"},
	"long_term_borrowing":            {"long_term_borrowing", "a002201000"},
	"bonds_payable":                  {"bonds_payable"},
	"lease_liabilities":              {"lease_liabilities"},
}

var cashFlowAliases = map[string][]string{
	"net_operating_cash_flow": {"net_operating_cash_flow", "c001000000"},
	"net_investing_cash_flow": {"net_investing_cash_flow", "c002000000"},
	"net_financing_cash_flow": {"net_financing_cash_flow", "c003000000"},
}

// DecodeIncomeStatement builds a typed statement from a wire map.
// Returns nil for a nil map so an absent statement stays absent.
func DecodeIncomeStatement(m map[string]interface{}) *IncomeStatement {
	if m == nil {
		return nil
	}
	return &IncomeStatement{
		Revenue:         aliasValue(m, incomeAliases["revenue"]),
		Cost:            aliasValue(m, incomeAliases["cost"]),
		BusinessTax:     aliasValue(m, incomeAliases["business_tax"]),
		SalesExpense:    aliasValue(m, incomeAliases["sales_expense"]),
		AdminExpense:    aliasValue(m, incomeAliases["admin_expense"]),
		RDExpense:       aliasValue(m, incomeAliases["rd_expense"]),
		FinanceExpense:  aliasValue(m, incomeAliases["finance_expense"]),
		InterestExpense: aliasValue(m, incomeAliases["interest_expense"]),
		TotalProfit:     aliasValue(m, incomeAliases["total_profit"]),
		NetProfit:       aliasValue(m, incomeAliases["net_profit"]),
		NetProfitParent: aliasValue(m, incomeAliases["net_profit_parent"]),
	}
}

// DecodeBalanceSheet builds a typed statement from a wire map.
func DecodeBalanceSheet(m map[string]interface{}) *BalanceSheet {
	if m == nil {
		return nil
	}
	return &BalanceSheet{
		TotalAssets:        aliasValue(m, balanceAliases["total_assets"]),
		TotalLiabilities:   aliasValue(m, balanceAliases["total_liabilities"]),
		TotalEquity:        aliasValue(m, balanceAliases["total_equity"]),
		CurrentAssets:      aliasValue(m, balanceAliases["current_assets"]),
		CurrentLiabilities: aliasValue(m, balanceAliases["current_liabilities"]),
		Inventory:          aliasValue(m, balanceAliases["inventory"]),
		FixedAssets:        aliasValue(m, balanceAliases["fixed_assets"]),
		ContractLiability:  aliasValue(m, balanceAliases["contract_liability"]),

		TradingFinancialAssets:         aliasValue(m, balanceAliases["trading_financial_assets"]),
		AvailableForSaleAssets:         aliasValue(m, balanceAliases["available_for_sale_assets"]),
		HeldToMaturityInvestments:      aliasValue(m, balanceAliases["held_to_maturity_investments"]),
		LongTermEquityInvestment:       aliasValue(m, balanceAliases["long_term_equity_investment"]),
		DebtInvestments:                aliasValue(m, balanceAliases["debt_investments"]),
		OtherEquityInstrumentsInvest:   aliasValue(m, balanceAliases["other_equity_instruments_invest"]),
		OtherNoncurrentFinancialAssets: aliasValue(m, balanceAliases["other_noncurrent_financial_assets"]),

		ShortTermBorrowing:          aliasValue(m, balanceAliases["short_term_borrowing"]),
		TradingFinancialLiabilities: aliasValue(m, balanceAliases["trading_financial_liabilities"]),
		CurrentNoncurrentLiab:       aliasValue(m, balanceAliases["current_noncurrent_liabilities"]),
		LongTermBorrowing:           aliasValue(m, balanceAliases["long_term_borrowing"]),
		BondsPayable:                aliasValue(m, balanceAliases["bonds_payable"]),
		LeaseLiabilities:            aliasValue(m, balanceAliases["lease_liabilities"]),
	}
}

// DecodeCashFlow builds a typed statement from a wire map.
func DecodeCashFlow(m map[string]interface{}) *CashFlow {
	if m == nil {
		return nil
	}
	return &CashFlow{
		NetOperatingCashFlow: aliasValue(m, cashFlowAliases["net_operating_cash_flow"]),
		NetInvestingCashFlow: aliasValue(m, cashFlowAliases["net_investing_cash_flow"]),
		NetFinancingCashFlow: aliasValue(m, cashFlowAliases["net_financing_cash_flow"]),
	}
}

// DecodeFinancialData decodes the three statement maps of one period.
func DecodeFinancialData(m map[string]interface{}) *FinancialData {
	if m == nil {
		return nil
	}
	return &FinancialData{
		IncomeStatement: DecodeIncomeStatement(subMap(m, "income_statement")),
		BalanceSheet:    DecodeBalanceSheet(subMap(m, "balance_sheet")),
		CashFlow:        DecodeCashFlow(subMap(m, "cash_flow")),
	}
}

func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]interface{}); ok {
			return sub
		}
	}
	return nil
}

func aliasValue(m map[string]interface{}, keys []string) *float64 {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f := SafeFloat(v); f != nil {
				return f
			}
		}
	}
	return nil
}

// SafeFloat converts a wire value to a float pointer. Strings are cleaned of
// commas and spaces; NaN, infinities, and unconvertible values become null.
func SafeFloat(v interface{}) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		return safeFloatString(x.String())
	case string:
		return safeFloatString(x)
	default:
		return nil
	}
}

func safeFloatString(s string) *float64 {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), " ", "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Float returns a pointer to v, for building statements in tests and tools.
func Float(v float64) *float64 {
	return &v
}
