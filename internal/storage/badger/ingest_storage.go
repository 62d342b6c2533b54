package badger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// IngestStorage implements the IngestStorage interface for Badger
type IngestStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIngestStorage creates a new IngestStorage instance
func NewIngestStorage(db *BadgerDB, logger arbor.ILogger) interfaces.IngestStorage {
	return &IngestStorage{
		db:     db,
		logger: logger,
	}
}

func (s *IngestStorage) SaveIngest(ctx context.Context, record *models.IngestRecord) error {
	if record == nil || record.IngestID == "" {
		return common.E(common.KindInvalidInput, "storage.ingest", "ingest ID is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.IngestID, record); err != nil {
		return common.Wrap(common.KindInternal, "storage.ingest", err)
	}
	return nil
}

func (s *IngestStorage) ListIngests(ctx context.Context, limit int) ([]*models.IngestRecord, error) {
	query := badgerhold.Where("IngestID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.IngestRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.ingest", err)
	}

	result := make([]*models.IngestRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *IngestStorage) ListIngestsByReport(ctx context.Context, reportID string) ([]*models.IngestRecord, error) {
	var records []models.IngestRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("ReportID").Eq(reportID).SortBy("CreatedAt").Reverse()); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.ingest", err)
	}

	result := make([]*models.IngestRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *IngestStorage) DeleteIngestsByReport(ctx context.Context, reportID string) error {
	if err := s.db.Store().DeleteMatching(&models.IngestRecord{}, badgerhold.Where("ReportID").Eq(reportID)); err != nil {
		return common.Wrap(common.KindInternal, "storage.ingest", err)
	}
	return nil
}
