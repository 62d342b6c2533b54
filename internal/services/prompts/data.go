package prompts

import (
	"strings"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/indicators"
)

const (
	maxContextChars     = 2000
	maxCoreSummaryChars = 500
	contextTruncMarker  = "\n...(内容过长，已截断)"
)

// CoreIndicatorsData renders the core indicator bucket as prompt lines.
func CoreIndicatorsData(set *models.IndicatorSet) string {
	if set == nil || len(set.Core) == 0 {
		return ""
	}
	lines := make([]string, 0, len(set.Core))
	for _, ind := range set.Core {
		lines = append(lines, indicators.FormatCoreLine(ind))
	}
	return strings.Join(lines, "\n")
}

// AuxiliaryIndicatorsData renders the auxiliary indicator bucket as prompt
// lines.
func AuxiliaryIndicatorsData(set *models.IndicatorSet) string {
	if set == nil || len(set.Auxiliary) == 0 {
		return ""
	}
	lines := make([]string, 0, len(set.Auxiliary))
	for _, ind := range set.Auxiliary {
		lines = append(lines, indicators.FormatAuxiliaryLine(ind))
	}
	return strings.Join(lines, "\n")
}

// SpecificIndicatorsData renders the business-model indicator bucket as
// prompt lines.
func SpecificIndicatorsData(set *models.IndicatorSet) string {
	if set == nil || len(set.Specific) == 0 {
		return ""
	}
	lines := make([]string, 0, len(set.Specific))
	for _, ind := range set.Specific {
		lines = append(lines, indicators.FormatSpecificLine(ind))
	}
	return strings.Join(lines, "\n")
}

// BusinessType infers the business model from which specific indicators are
// present: contract liability marks subscription businesses, inventory marks
// hardware businesses.
func BusinessType(set *models.IndicatorSet) string {
	if set.SpecificByKey("contract_liability") != nil {
		return "订阅制/SaaS"
	}
	if set.SpecificByKey("inventory") != nil {
		return "硬件/算力"
	}
	return "通用"
}

// TruncateContext caps retrieved context at the prompt budget, appending a
// truncation marker when content was dropped.
func TruncateContext(context string) string {
	return common.TruncateRunes(context, maxContextChars, contextTruncMarker)
}

// CoreSummary caps the core analysis passed into downstream prompts.
func CoreSummary(coreAnalysis string) string {
	return common.TruncateRunes(coreAnalysis, maxCoreSummaryChars, "")
}
