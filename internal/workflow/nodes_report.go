package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/prompts"
)

// GenerateReport synthesizes the final report from the three analyses and
// the retrieved context. Re-entry from the quality gate counts against the
// regeneration budget.
func (n *Nodes) GenerateReport(ctx context.Context, state *models.ReportState) (*Patch, error) {
	patch := &Patch{}
	if state.Report != "" {
		patch.Regenerations = 1
	}

	user := n.prompts.Render(prompts.TemplateReport, map[string]string{
		"company_name":         state.CompanyName,
		"report_period":        state.ReportPeriod,
		"industry":             state.Industry,
		"core_analysis":        state.CoreAnalysis,
		"auxiliary_analysis":   state.AuxiliaryAnalysis,
		"specific_analysis":    state.SpecificAnalysis,
		"unstructured_context": prompts.TruncateContext(state.Context),
	})

	patch.LLMCalls = 1
	report, err := n.llm.Generate(ctx, n.prompts.System(state.Industry), user)
	if err != nil {
		patch.Errors = append(patch.Errors, fmt.Sprintf("生成报告失败: %v", err))
		failed := "报告生成失败。"
		patch.Report = &failed
		return patch, nil
	}

	n.logger.Info().
		Int("length", len(report)).
		Int("regeneration_count", state.RegenerationCount+patch.Regenerations).
		Msg("Report generated")

	patch.Report = &report
	return patch, nil
}

// QualityCheck scores the report and records the issues found. The routing
// decision itself lives in QualityRoute.
func (n *Nodes) QualityCheck(ctx context.Context, state *models.ReportState) (*Patch, error) {
	score, issues := ScoreReport(state.Report)

	if len(issues) > 0 {
		n.logger.Warn().
			Int("score", score).
			Strs("issues", issues).
			Msg("Report quality issues found")
	} else {
		n.logger.Info().Int("score", score).Msg("Report quality check passed")
	}

	return &Patch{QualityScore: &score, QualityIssues: &issues}, nil
}
