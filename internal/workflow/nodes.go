package workflow

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/prompts"
)

// Node names in execution order.
const (
	NodeFetchFinancialData  = "fetch_financial_data"
	NodeCalculateIndicators = "calculate_indicators"
	NodeRetrieveContext     = "retrieve_context"
	NodeAnalyzeCore         = "analyze_core"
	NodeAnalyzeAuxiliary    = "analyze_auxiliary"
	NodeAnalyzeSpecific     = "analyze_specific"
	NodeGenerateReport      = "generate_report"
	NodeQualityCheck        = "quality_check"
)

// Tool names recorded in tools_called for run diagnostics.
const (
	toolCompleteFinancialData = "get_complete_financial_data_tool"
	toolCalculateIndicators   = "calculate_all_indicators_tool"
	toolAnalysisContext       = "get_context_for_analysis_tool"
)

// Dependencies are the services the report nodes call.
type Dependencies struct {
	FinData    interfaces.FinancialDataService
	Indicators interfaces.IndicatorService
	Retrieval  interfaces.RetrievalService
	LLM        interfaces.LLMService
	Industries interfaces.IndustryService
	Prompts    *prompts.Store
	Config     common.WorkflowConfig
	Logger     arbor.ILogger
}

// Nodes holds the report workflow's node implementations.
type Nodes struct {
	findata    interfaces.FinancialDataService
	indicators interfaces.IndicatorService
	retrieval  interfaces.RetrievalService
	llm        interfaces.LLMService
	industries interfaces.IndustryService
	prompts    *prompts.Store
	config     common.WorkflowConfig
	logger     arbor.ILogger
}

// NewNodes creates the report workflow nodes.
func NewNodes(deps Dependencies) *Nodes {
	return &Nodes{
		findata:    deps.FinData,
		indicators: deps.Indicators,
		retrieval:  deps.Retrieval,
		llm:        deps.LLM,
		industries: deps.Industries,
		prompts:    deps.Prompts,
		config:     deps.Config,
		logger:     deps.Logger,
	}
}

// BuildEngine wires the eight nodes into the report graph: a linear chain
// from data fetch through quality check, with one conditional back-edge
// from the quality check to report generation.
func (n *Nodes) BuildEngine(events interfaces.EventService) (*Engine, error) {
	engine := NewEngine(n.config, events, n.logger)

	nodes := []struct {
		name string
		fn   NodeFunc
	}{
		{NodeFetchFinancialData, n.FetchFinancialData},
		{NodeCalculateIndicators, n.CalculateIndicators},
		{NodeRetrieveContext, n.RetrieveContext},
		{NodeAnalyzeCore, n.AnalyzeCore},
		{NodeAnalyzeAuxiliary, n.AnalyzeAuxiliary},
		{NodeAnalyzeSpecific, n.AnalyzeSpecific},
		{NodeGenerateReport, n.GenerateReport},
		{NodeQualityCheck, n.QualityCheck},
	}
	for _, node := range nodes {
		if err := engine.AddNode(node.name, node.fn); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(nodes)-1; i++ {
		if err := engine.AddEdge(nodes[i].name, nodes[i+1].name); err != nil {
			return nil, err
		}
	}
	if err := engine.AddRoute(NodeQualityCheck, n.QualityRoute); err != nil {
		return nil, err
	}

	return engine, nil
}

// QualityRoute sends a failing report back through generation while the
// regeneration budget holds.
func (n *Nodes) QualityRoute(state *models.ReportState) string {
	if ShouldRegenerate(state.Report, state.QualityScore, state.RegenerationCount, n.config) {
		n.logger.Warn().
			Int("score", state.QualityScore).
			Int("regeneration_count", state.RegenerationCount).
			Msg("Report quality below threshold, regenerating")
		return NodeGenerateReport
	}
	return End
}
