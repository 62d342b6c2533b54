package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/prompts"
)

const analysisFailedText = "分析失败。"

// AnalyzeCore interprets the core growth indicators. An empty bucket skips
// the LLM call; an LLM failure degrades to a placeholder analysis.
func (n *Nodes) AnalyzeCore(ctx context.Context, state *models.ReportState) (*Patch, error) {
	patch := &Patch{}

	data := prompts.CoreIndicatorsData(state.Indicators)
	if data == "" {
		missing := "核心指标数据缺失，无法分析。"
		patch.CoreAnalysis = &missing
		return patch, nil
	}

	user := n.prompts.Render(prompts.TemplateCoreAnalysis, map[string]string{
		"company_name":         state.CompanyName,
		"report_period":        state.ReportPeriod,
		"industry":             state.Industry,
		"core_indicators_data": data,
	})

	patch.LLMCalls = 1
	analysis, err := n.llm.Generate(ctx, n.prompts.System(state.Industry), user)
	if err != nil {
		patch.Warnings = append(patch.Warnings, fmt.Sprintf("核心指标分析失败: %v", err))
		failed := analysisFailedText
		patch.CoreAnalysis = &failed
		return patch, nil
	}

	n.logger.Info().Int("length", len(analysis)).Msg("Core indicator analysis complete")
	patch.CoreAnalysis = &analysis
	return patch, nil
}

// AnalyzeAuxiliary interprets margins and expense ratios, anchored on a
// summary of the core analysis.
func (n *Nodes) AnalyzeAuxiliary(ctx context.Context, state *models.ReportState) (*Patch, error) {
	patch := &Patch{}

	data := prompts.AuxiliaryIndicatorsData(state.Indicators)
	if data == "" {
		missing := "辅助指标数据缺失，无法分析。"
		patch.AuxiliaryAnalysis = &missing
		return patch, nil
	}

	user := n.prompts.Render(prompts.TemplateAuxiliary, map[string]string{
		"company_name":              state.CompanyName,
		"report_period":             state.ReportPeriod,
		"auxiliary_indicators_data": data,
		"core_indicators_summary":   prompts.CoreSummary(state.CoreAnalysis),
	})

	patch.LLMCalls = 1
	analysis, err := n.llm.Generate(ctx, n.prompts.System(state.Industry), user)
	if err != nil {
		patch.Warnings = append(patch.Warnings, fmt.Sprintf("辅助指标分析失败: %v", err))
		failed := analysisFailedText
		patch.AuxiliaryAnalysis = &failed
		return patch, nil
	}

	n.logger.Info().Int("length", len(analysis)).Msg("Auxiliary indicator analysis complete")
	patch.AuxiliaryAnalysis = &analysis
	return patch, nil
}

// AnalyzeSpecific interprets the business-model indicators, tagging the
// business type from which leading indicators are present.
func (n *Nodes) AnalyzeSpecific(ctx context.Context, state *models.ReportState) (*Patch, error) {
	patch := &Patch{}

	data := prompts.SpecificIndicatorsData(state.Indicators)
	if data == "" {
		missing := "无适用的个性化指标数据。"
		patch.SpecificAnalysis = &missing
		return patch, nil
	}

	user := n.prompts.Render(prompts.TemplateSpecificAnalysis, map[string]string{
		"company_name":             state.CompanyName,
		"report_period":            state.ReportPeriod,
		"business_type":            prompts.BusinessType(state.Indicators),
		"specific_indicators_data": data,
	})

	patch.LLMCalls = 1
	analysis, err := n.llm.Generate(ctx, n.prompts.System(state.Industry), user)
	if err != nil {
		patch.Warnings = append(patch.Warnings, fmt.Sprintf("个性化指标分析失败: %v", err))
		failed := analysisFailedText
		patch.SpecificAnalysis = &failed
		return patch, nil
	}

	n.logger.Info().Int("length", len(analysis)).Msg("Specific indicator analysis complete")
	patch.SpecificAnalysis = &analysis
	return patch, nil
}
