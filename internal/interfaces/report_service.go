package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// ReportRequest identifies one report to generate.
type ReportRequest struct {
	CompanyName  string `json:"company_name"`
	CompanyCode  string `json:"company_code"`
	Industry     string `json:"industry"`
	ReportPeriod string `json:"report_period"`
}

// ReportService orchestrates report generation and owns the report archive.
type ReportService interface {
	// GenerateReport runs the workflow synchronously and archives the
	// result. The returned envelope carries partial output on failure.
	GenerateReport(ctx context.Context, req ReportRequest) (*models.ReportResult, error)

	// StartRun launches an asynchronous generation and returns its run
	// record immediately.
	StartRun(ctx context.Context, req ReportRequest) (*models.ReportRun, error)

	// GetRun returns the current state of a run.
	GetRun(ctx context.Context, runID string) (*models.ReportRun, error)

	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error)

	// GetReport returns an archived report.
	GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error)

	// ListReports returns archived reports, optionally scoped to a company
	// code.
	ListReports(ctx context.Context, companyCode string) ([]*models.ReportDocument, error)

	// DeleteReport removes a report from the archive and its vectors from
	// the store.
	DeleteReport(ctx context.Context, reportID string) error

	// ExportReportPDF renders an archived report to PDF and returns the
	// output path.
	ExportReportPDF(ctx context.Context, reportID string) (string, error)
}
