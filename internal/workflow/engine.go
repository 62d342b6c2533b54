package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// End terminates the run when returned by a route.
const End = "__end__"

// NodeFunc is one workflow step. Nodes read the state and return a patch;
// they never mutate the state directly. A returned error aborts the run;
// degradable failures go into the patch's Errors/Warnings instead.
type NodeFunc func(ctx context.Context, state *models.ReportState) (*Patch, error)

// RouteFunc picks the next node after a conditional edge. Returning End
// finishes the run.
type RouteFunc func(state *models.ReportState) string

// Patch is the delta a node applies to the state. Pointer fields overwrite
// when non-nil, list fields append, and the int fields accumulate.
// QualityIssues replaces wholesale: each quality check is a fresh verdict.
type Patch struct {
	FinancialData *models.CompleteData
	Indicators    *models.IndicatorSet
	Ratios        *models.RatioReport
	Context       *string

	CoreAnalysis      *string
	AuxiliaryAnalysis *string
	SpecificAnalysis  *string

	Report        *string
	QualityScore  *int
	QualityIssues *[]string
	Regenerations int

	LLMCalls    int
	ToolsCalled []string
	Errors      []string
	Warnings    []string
}

func (p *Patch) apply(state *models.ReportState) {
	if p.FinancialData != nil {
		state.FinancialData = p.FinancialData
	}
	if p.Indicators != nil {
		state.Indicators = p.Indicators
	}
	if p.Ratios != nil {
		state.Ratios = p.Ratios
	}
	if p.Context != nil {
		state.Context = *p.Context
	}
	if p.CoreAnalysis != nil {
		state.CoreAnalysis = *p.CoreAnalysis
	}
	if p.AuxiliaryAnalysis != nil {
		state.AuxiliaryAnalysis = *p.AuxiliaryAnalysis
	}
	if p.SpecificAnalysis != nil {
		state.SpecificAnalysis = *p.SpecificAnalysis
	}
	if p.Report != nil {
		state.Report = *p.Report
	}
	if p.QualityScore != nil {
		state.QualityScore = *p.QualityScore
	}
	if p.QualityIssues != nil {
		state.QualityIssues = *p.QualityIssues
	}
	state.RegenerationCount += p.Regenerations
	state.LLMCalls += p.LLMCalls
	state.ToolsCalled = append(state.ToolsCalled, p.ToolsCalled...)
	state.Errors = append(state.Errors, p.Errors...)
	state.Warnings = append(state.Warnings, p.Warnings...)
}

// ProgressEvent is published after each node completes.
type ProgressEvent struct {
	RunID        string `json:"run_id,omitempty"`
	Node         string `json:"node"`
	Step         int    `json:"step"`
	CompanyName  string `json:"company_name"`
	ReportPeriod string `json:"report_period"`
}

// Engine runs a registry of named nodes over a ReportState, following
// linear edges plus at most one conditional route per node. Node panics are
// recovered into errors; context cancellation is honored between nodes; the
// total step count is capped to keep conditional back-edges from looping.
type Engine struct {
	entry    string
	nodes    map[string]NodeFunc
	edges    map[string]string
	routes   map[string]RouteFunc
	maxSteps int
	events   interfaces.EventService
	logger   arbor.ILogger
}

const defaultMaxSteps = 32

// NewEngine creates an empty engine. events may be nil when no progress
// consumers exist (CLI runs).
func NewEngine(cfg common.WorkflowConfig, events interfaces.EventService, logger arbor.ILogger) *Engine {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Engine{
		nodes:    make(map[string]NodeFunc),
		edges:    make(map[string]string),
		routes:   make(map[string]RouteFunc),
		maxSteps: maxSteps,
		events:   events,
		logger:   logger,
	}
}

// AddNode registers a named node. The first node added becomes the entry.
func (e *Engine) AddNode(name string, fn NodeFunc) error {
	if name == "" || name == End {
		return common.E(common.KindInvalidInput, "workflow.add_node", "node name is reserved or empty")
	}
	if _, exists := e.nodes[name]; exists {
		return common.E(common.KindInvalidInput, "workflow.add_node",
			fmt.Sprintf("node %q already registered", name))
	}
	e.nodes[name] = fn
	if e.entry == "" {
		e.entry = name
	}
	return nil
}

// AddEdge links from → to unconditionally.
func (e *Engine) AddEdge(from, to string) error {
	if _, ok := e.nodes[from]; !ok {
		return common.E(common.KindInvalidInput, "workflow.add_edge",
			fmt.Sprintf("unknown source node %q", from))
	}
	if _, ok := e.nodes[to]; !ok && to != End {
		return common.E(common.KindInvalidInput, "workflow.add_edge",
			fmt.Sprintf("unknown target node %q", to))
	}
	e.edges[from] = to
	return nil
}

// AddRoute installs a conditional edge on from. The route overrides any
// unconditional edge for that node.
func (e *Engine) AddRoute(from string, route RouteFunc) error {
	if _, ok := e.nodes[from]; !ok {
		return common.E(common.KindInvalidInput, "workflow.add_route",
			fmt.Sprintf("unknown source node %q", from))
	}
	e.routes[from] = route
	return nil
}

// Run executes the graph from the entry node until a route returns End or a
// node fails. runID is carried in progress events for correlation.
func (e *Engine) Run(ctx context.Context, runID string, state *models.ReportState) error {
	const op = "workflow.run"

	if e.entry == "" {
		return common.E(common.KindInternal, op, "no nodes registered")
	}

	current := e.entry
	for step := 1; ; step++ {
		if err := ctx.Err(); err != nil {
			return common.Wrap(common.KindCancelled, op, err)
		}
		if step > e.maxSteps {
			return common.E(common.KindInternal, op,
				fmt.Sprintf("workflow exceeded %d steps at node %q", e.maxSteps, current))
		}

		fn, ok := e.nodes[current]
		if !ok {
			return common.E(common.KindInternal, op, fmt.Sprintf("unknown node %q", current))
		}

		e.logger.Debug().
			Str("run_id", runID).
			Str("node", current).
			Int("step", step).
			Msg("Executing workflow node")

		state.ProcessingSteps = append(state.ProcessingSteps, current)
		patch, err := invoke(ctx, current, fn, state)
		if patch != nil {
			patch.apply(state)
		}
		e.publishProgress(ctx, runID, current, step, state)
		if err != nil {
			return err
		}

		next := e.edges[current]
		if route, ok := e.routes[current]; ok {
			next = route(state)
		}
		if next == End || next == "" {
			return nil
		}
		current = next
	}
}

func invoke(ctx context.Context, name string, fn NodeFunc, state *models.ReportState) (patch *Patch, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.E(common.KindInternal, "workflow."+name,
				fmt.Sprintf("node panicked: %v", r))
		}
	}()
	return fn(ctx, state)
}

func (e *Engine) publishProgress(ctx context.Context, runID, node string, step int, state *models.ReportState) {
	if e.events == nil {
		return
	}
	event := interfaces.Event{
		Type: interfaces.EventWorkflowProgress,
		Payload: ProgressEvent{
			RunID:        runID,
			Node:         node,
			Step:         step,
			CompanyName:  state.CompanyName,
			ReportPeriod: state.ReportPeriod,
		},
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn().Err(err).Str("node", node).Msg("Failed to publish workflow progress")
	}
}
