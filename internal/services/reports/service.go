package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/workflow"
)

// Service orchestrates report generation through the workflow engine and
// owns the report archive and the asynchronous run registry.
type Service struct {
	engine    *workflow.Engine
	storage   interfaces.StorageManager
	ingestion interfaces.IngestionService
	events    interfaces.EventService
	pdf       interfaces.PDFService
	outputDir string
	logger    arbor.ILogger
}

var _ interfaces.ReportService = (*Service)(nil)

// Options carries the report service dependencies. Ingestion, Events, and
// PDF are optional; absent capabilities degrade the matching operations.
type Options struct {
	Nodes     *workflow.Nodes
	Storage   interfaces.StorageManager
	Ingestion interfaces.IngestionService
	Events    interfaces.EventService
	PDF       interfaces.PDFService
	Config    common.ReportsConfig
	Logger    arbor.ILogger
}

// NewService builds the report service and wires the workflow graph.
func NewService(opts Options) (*Service, error) {
	const op = "reports.new"

	if opts.Nodes == nil {
		return nil, common.E(common.KindInvalidInput, op, "workflow nodes are required")
	}
	if opts.Storage == nil {
		return nil, common.E(common.KindInvalidInput, op, "storage manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = arbor.NewLogger()
	}
	outputDir := opts.Config.OutputDir
	if outputDir == "" {
		outputDir = "./data/reports"
	}

	engine, err := opts.Nodes.BuildEngine(opts.Events)
	if err != nil {
		return nil, err
	}

	return &Service{
		engine:    engine,
		storage:   opts.Storage,
		ingestion: opts.Ingestion,
		events:    opts.Events,
		pdf:       opts.PDF,
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// GenerateReport runs the workflow synchronously and archives a successful
// result. Workflow failures are folded into the result envelope; only
// request resolution and cancellation surface as errors.
func (s *Service) GenerateReport(ctx context.Context, req interfaces.ReportRequest) (*models.ReportResult, error) {
	state, err := s.resolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, common.NewRunID(), state), nil
}

func (s *Service) run(ctx context.Context, runID string, state *models.ReportState) *models.ReportResult {
	s.logger.Info().
		Str("run_id", runID).
		Str("company", state.CompanyName).
		Str("code", state.CompanyCode).
		Str("period", state.ReportPeriod).
		Msg("Starting report generation")

	if err := s.engine.Run(ctx, runID, state); err != nil {
		state.Errors = append(state.Errors, errorMessage(err))
	}

	result := models.ResultFromState(state, time.Since(state.StartedAt).Seconds())

	if result.Success && state.Report != "" {
		if doc, err := s.archive(ctx, state); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to archive generated report")
			result.Warnings = append(result.Warnings, fmt.Sprintf("报告归档失败: %v", err))
		} else {
			s.publishCompleted(ctx, runID, doc)
		}
	}

	s.logger.Info().
		Str("run_id", runID).
		Bool("success", result.Success).
		Int("quality_score", result.QualityScore).
		Int("llm_calls", result.LLMCalls).
		Float64("processing_time", result.ProcessingTime).
		Msg("Report generation finished")

	return result
}

// StartRun launches an asynchronous generation and returns the run record.
func (s *Service) StartRun(ctx context.Context, req interfaces.ReportRequest) (*models.ReportRun, error) {
	state, err := s.resolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &models.ReportRun{
		RunID:        common.NewRunID(),
		CompanyName:  state.CompanyName,
		CompanyCode:  state.CompanyCode,
		Industry:     state.Industry,
		ReportPeriod: state.ReportPeriod,
		Status:       models.RunStatusPending,
		StartedAt:    state.StartedAt,
	}
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		return nil, err
	}

	common.SafeGo(s.logger, "report-run-"+run.RunID, func() {
		s.executeRun(run, state)
	})

	return run, nil
}

func (s *Service) executeRun(run *models.ReportRun, state *models.ReportState) {
	// The run outlives the originating request.
	ctx := context.Background()

	run.Status = models.RunStatusRunning
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to mark run as running")
	}

	result := s.run(ctx, run.RunID, state)

	now := time.Now()
	run.CompletedAt = &now
	run.QualityScore = result.QualityScore
	if result.Success {
		run.Status = models.RunStatusCompleted
		run.ReportID = models.MakeReportID(state.CompanyCode, state.ReportPeriod)
	} else {
		run.Status = models.RunStatusFailed
		if len(result.Errors) > 0 {
			run.Error = result.Errors[0]
		}
	}
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to save finished run")
	}
}

// GetRun returns the current state of a run.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.ReportRun, error) {
	return s.storage.Runs().GetRun(ctx, runID)
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error) {
	return s.storage.Runs().ListRuns(ctx, limit)
}

// GetReport returns an archived report.
func (s *Service) GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error) {
	return s.storage.Reports().GetReport(ctx, reportID)
}

// ListReports returns archived reports, optionally scoped to a company.
func (s *Service) ListReports(ctx context.Context, companyCode string) ([]*models.ReportDocument, error) {
	if companyCode != "" {
		return s.storage.Reports().ListReportsByCompany(ctx, companyCode)
	}
	return s.storage.Reports().ListReports(ctx)
}

// DeleteReport removes a report from the archive along with the filing
// vectors ingested under the same report scope.
func (s *Service) DeleteReport(ctx context.Context, reportID string) error {
	if _, err := s.storage.Reports().GetReport(ctx, reportID); err != nil {
		return err
	}
	if err := s.storage.Reports().DeleteReport(ctx, reportID); err != nil {
		return err
	}
	if s.ingestion != nil {
		if deleted, err := s.ingestion.DeleteReport(ctx, reportID); err != nil {
			s.logger.Warn().Err(err).Str("report_id", reportID).Msg("Failed to delete report vectors")
		} else if deleted > 0 {
			s.logger.Info().Str("report_id", reportID).Int64("vectors", deleted).Msg("Report vectors deleted")
		}
	}
	return nil
}

// ExportReportPDF renders an archived report to PDF next to the markdown
// export and returns the output path.
func (s *Service) ExportReportPDF(ctx context.Context, reportID string) (string, error) {
	const op = "reports.export_pdf"

	if s.pdf == nil {
		return "", common.E(common.KindPrecondition, op, "PDF rendering is not configured")
	}

	doc, err := s.storage.Reports().GetReport(ctx, reportID)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("%s %s 财报点评", doc.CompanyName, doc.ReportPeriod)
	data, err := s.pdf.ConvertMarkdownToPDF(doc.Markdown, title)
	if err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}
	if _, err := s.pdf.ValidatePDF(data); err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s_财报点评.pdf", doc.CompanyName, doc.ReportPeriod))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}

	s.logger.Info().Str("report_id", reportID).Str("path", path).Msg("Report exported to PDF")
	return path, nil
}

func (s *Service) archive(ctx context.Context, state *models.ReportState) (*models.ReportDocument, error) {
	doc := &models.ReportDocument{
		ReportID:          models.MakeReportID(state.CompanyCode, state.ReportPeriod),
		CompanyName:       state.CompanyName,
		CompanyCode:       state.CompanyCode,
		ReportPeriod:      state.ReportPeriod,
		Industry:          state.Industry,
		Markdown:          state.Report,
		QualityScore:      state.QualityScore,
		RegenerationCount: state.RegenerationCount,
		GeneratedAt:       time.Now(),
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err == nil {
		path := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s_财报点评.md", state.CompanyName, state.ReportPeriod))
		if err := os.WriteFile(path, []byte(state.Report), 0o644); err == nil {
			doc.FilePath = path
		} else {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to write report markdown file")
		}
	}

	if err := s.storage.Reports().SaveReport(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) publishCompleted(ctx context.Context, runID string, doc *models.ReportDocument) {
	if s.events == nil {
		return
	}
	event := interfaces.Event{
		Type: interfaces.EventReportCompleted,
		Payload: map[string]interface{}{
			"run_id":        runID,
			"report_id":     doc.ReportID,
			"company_name":  doc.CompanyName,
			"report_period": doc.ReportPeriod,
			"quality_score": doc.QualityScore,
		},
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish report completion event")
	}
}

// errorMessage keeps the operator-facing message when the error is an
// AppError, dropping the op prefix.
func errorMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
