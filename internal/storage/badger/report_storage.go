package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements the ReportStorage interface for Badger
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ReportStorage) SaveReport(ctx context.Context, doc *models.ReportDocument) error {
	if doc == nil || doc.ReportID == "" {
		return common.E(common.KindInvalidInput, "storage.report", "report ID is required")
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}

	if err := s.db.Store().Upsert(doc.ReportID, doc); err != nil {
		return common.Wrap(common.KindInternal, "storage.report", err)
	}
	return nil
}

func (s *ReportStorage) GetReport(ctx context.Context, reportID string) (*models.ReportDocument, error) {
	var doc models.ReportDocument
	if err := s.db.Store().Get(reportID, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.E(common.KindNotFound, "storage.report", fmt.Sprintf("report not found: %s", reportID))
		}
		return nil, common.Wrap(common.KindInternal, "storage.report", err)
	}
	return &doc, nil
}

func (s *ReportStorage) ListReports(ctx context.Context) ([]*models.ReportDocument, error) {
	var docs []models.ReportDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("ReportID").Ne("").SortBy("GeneratedAt").Reverse()); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.report", err)
	}

	result := make([]*models.ReportDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *ReportStorage) ListReportsByCompany(ctx context.Context, companyCode string) ([]*models.ReportDocument, error) {
	var docs []models.ReportDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("CompanyCode").Eq(companyCode).SortBy("ReportPeriod")); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.report", err)
	}

	result := make([]*models.ReportDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *ReportStorage) DeleteReport(ctx context.Context, reportID string) error {
	if err := s.db.Store().Delete(reportID, &models.ReportDocument{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return common.E(common.KindNotFound, "storage.report", fmt.Sprintf("report not found: %s", reportID))
		}
		return common.Wrap(common.KindInternal, "storage.report", err)
	}
	return nil
}

func (s *ReportStorage) CountReports(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ReportDocument{}, nil)
	if err != nil {
		return 0, common.Wrap(common.KindInternal, "storage.report", err)
	}
	return int(count), nil
}
