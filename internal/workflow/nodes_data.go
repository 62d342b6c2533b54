package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/models"
)

// FetchFinancialData loads the three statements plus the prior-year
// comparison set. Missing data and transport failures both degrade so
// downstream nodes can still report what they know.
func (n *Nodes) FetchFinancialData(ctx context.Context, state *models.ReportState) (*Patch, error) {
	const op = "workflow.fetch_financial_data"
	patch := &Patch{ToolsCalled: []string{toolCompleteFinancialData}}

	data, err := n.findata.GetCompleteData(ctx, state.CompanyCode, state.ReportPeriod, true)
	if err != nil {
		if ctx.Err() != nil {
			return patch, common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		if common.IsNotFound(err) {
			patch.Errors = append(patch.Errors,
				fmt.Sprintf("未找到%s的%s期财报数据", state.CompanyCode, state.ReportPeriod))
			return patch, nil
		}
		patch.Errors = append(patch.Errors, fmt.Sprintf("获取财务数据失败: %v", err))
		return patch, nil
	}
	if data == nil || (data.IncomeStatement == nil && data.BalanceSheet == nil && data.CashFlow == nil) {
		patch.Errors = append(patch.Errors,
			fmt.Sprintf("未找到%s的%s期财报数据", state.CompanyCode, state.ReportPeriod))
		return patch, nil
	}

	n.logger.Info().
		Str("company_code", state.CompanyCode).
		Str("period", state.ReportPeriod).
		Bool("has_previous", data.PreviousData != nil).
		Msg("Financial data fetched")

	patch.FinancialData = data
	return patch, nil
}

// CalculateIndicators computes the industry indicator set and the ratio
// report. Failures degrade to an empty set.
func (n *Nodes) CalculateIndicators(ctx context.Context, state *models.ReportState) (*Patch, error) {
	patch := &Patch{ToolsCalled: []string{toolCalculateIndicators}}

	profile, err := n.industries.GetProfile(state.Industry)
	if err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("计算指标失败: %v", err))
		patch.Indicators = &models.IndicatorSet{Industry: state.Industry}
		return patch, nil
	}

	if state.FinancialData == nil {
		patch.Indicators = &models.IndicatorSet{Industry: profile.Code}
		return patch, nil
	}

	current := &state.FinancialData.FinancialData
	patch.Indicators = n.indicators.Extract(profile, current, state.FinancialData.PreviousData)

	income, balance, cashflow := state.CurrentStatements()
	var prevBalance *models.BalanceSheet
	if prev := state.PreviousStatements(); prev != nil {
		prevBalance = prev.BalanceSheet
	}
	patch.Ratios = n.indicators.ComputeRatios(income, balance, cashflow, prevBalance, state.ReportPeriod)

	n.logger.Info().
		Int("core", len(patch.Indicators.Core)).
		Int("auxiliary", len(patch.Indicators.Auxiliary)).
		Int("specific", len(patch.Indicators.Specific)).
		Msg("Indicators calculated")

	return patch, nil
}

// RetrieveContext assembles the semantic context from ingested filings.
// Retrieval failure is a warning, never an abort.
func (n *Nodes) RetrieveContext(ctx context.Context, state *models.ReportState) (*Patch, error) {
	const op = "workflow.retrieve_context"
	patch := &Patch{ToolsCalled: []string{toolAnalysisContext}}

	text, err := n.retrieval.GetAnalysisContext(ctx, state.CompanyName, state.ReportPeriod, "")
	if err != nil {
		if ctx.Err() != nil {
			return patch, common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		patch.Warnings = append(patch.Warnings, fmt.Sprintf("检索上下文失败: %v", err))
		empty := ""
		patch.Context = &empty
		return patch, nil
	}

	n.logger.Info().
		Str("company", state.CompanyName).
		Int("context_length", len(text)).
		Msg("Analysis context retrieved")

	patch.Context = &text
	return patch, nil
}
