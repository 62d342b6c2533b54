package models

import "time"

// ReportState is the typed workflow state threaded through the report
// generation nodes. Nodes never mutate it directly; they return patches the
// engine merges.
type ReportState struct {
	// Inputs
	CompanyName  string `json:"company_name"`
	CompanyCode  string `json:"company_code"`
	Industry     string `json:"industry"`
	ReportPeriod string `json:"report_period"`

	// Gathered data
	FinancialData *CompleteData `json:"financial_data,omitempty"`
	Indicators    *IndicatorSet `json:"indicators,omitempty"`
	Ratios        *RatioReport  `json:"ratios,omitempty"`
	Context       string        `json:"context,omitempty"`

	// Analyses
	CoreAnalysis      string `json:"core_analysis,omitempty"`
	AuxiliaryAnalysis string `json:"auxiliary_analysis,omitempty"`
	SpecificAnalysis  string `json:"specific_analysis,omitempty"`

	// Output
	Report            string   `json:"report,omitempty"`
	QualityScore      int      `json:"quality_score"`
	QualityIssues     []string `json:"quality_issues,omitempty"`
	RegenerationCount int      `json:"regeneration_count"`

	// Bookkeeping
	LLMCalls        int       `json:"llm_calls"`
	ToolsCalled     []string  `json:"tools_called,omitempty"`
	ProcessingSteps []string  `json:"processing_steps,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}

// CurrentStatements unwraps the current-period statements, tolerating a
// partially fetched state.
func (s *ReportState) CurrentStatements() (*IncomeStatement, *BalanceSheet, *CashFlow) {
	if s == nil || s.FinancialData == nil {
		return nil, nil, nil
	}
	return s.FinancialData.IncomeStatement, s.FinancialData.BalanceSheet, s.FinancialData.CashFlow
}

// PreviousStatements unwraps the prior-period statements when present.
func (s *ReportState) PreviousStatements() *FinancialData {
	if s == nil || s.FinancialData == nil {
		return nil
	}
	return s.FinancialData.PreviousData
}
