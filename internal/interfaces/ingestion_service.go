package interfaces

import (
	"context"

	"github.com/ternarybob/finreview/internal/models"
)

// IngestRequest identifies one filing to ingest. Content may be supplied
// inline; when empty the file at FilePath is read.
type IngestRequest struct {
	CompanyName  string `json:"company_name"`
	CompanyCode  string `json:"company_code"`
	ReportPeriod string `json:"report_period"`
	FilePath     string `json:"file_path"`
	Content      string `json:"content,omitempty"`
}

// BatchItemResult is the outcome of one manifest entry in a batch ingest.
type BatchItemResult struct {
	Index    int                  `json:"index"`
	ReportID string               `json:"report_id,omitempty"`
	Success  bool                 `json:"success"`
	Record   *models.IngestRecord `json:"record,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// IngestionService runs the chunk -> embed -> store pipeline.
type IngestionService interface {
	// IngestReport chunks, embeds, and stores one filing. Re-ingesting a
	// report scope replaces its previous records.
	IngestReport(ctx context.Context, req IngestRequest) (*models.IngestRecord, error)

	// BatchIngest processes a manifest, isolating failures per item.
	BatchIngest(ctx context.Context, reqs []IngestRequest) []BatchItemResult

	// DeleteReport removes one report scope from the vector store and
	// drops its ingest manifest rows.
	DeleteReport(ctx context.Context, reportID string) (int64, error)

	// Stats reports the state of the vector collection.
	Stats(ctx context.Context) (*VectorStoreStats, error)
}
