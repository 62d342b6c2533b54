package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// CompanyStorage - interface for the tracked-company catalog
type CompanyStorage interface {
	UpsertCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, code string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	ListCompaniesByIndustry(ctx context.Context, industry string) ([]*models.Company, error)
	DeleteCompany(ctx context.Context, code string) error
	CountCompanies(ctx context.Context) (int, error)
}

// ReportStorage - interface for archived generated reports
type ReportStorage interface {
	SaveReport(ctx context.Context, doc *models.ReportDocument) error
	GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error)
	ListReports(ctx context.Context) ([]*models.ReportDocument, error)
	ListReportsByCompany(ctx context.Context, companyCode string) ([]*models.ReportDocument, error)
	DeleteReport(ctx context.Context, reportID string) error
	CountReports(ctx context.Context) (int, error)
}

// RunStorage - interface for asynchronous report run tracking
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.ReportRun) error
	GetRun(ctx context.Context, runID string) (*models.ReportRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error)
	ListRunsByStatus(ctx context.Context, status string) ([]*models.ReportRun, error)
	DeleteRun(ctx context.Context, runID string) error
}

// IngestStorage - interface for ingestion job summaries
type IngestStorage interface {
	SaveIngest(ctx context.Context, record *models.IngestRecord) error
	ListIngests(ctx context.Context, limit int) ([]*models.IngestRecord, error)
	ListIngestsByReport(ctx context.Context, reportID string) ([]*models.IngestRecord, error)
	DeleteIngestsByReport(ctx context.Context, reportID string) error
}

// StorageManager - composite interface for all document storage operations
type StorageManager interface {
	Companies() CompanyStorage
	Reports() ReportStorage
	Runs() RunStorage
	Ingests() IngestStorage
	Close() error
}
