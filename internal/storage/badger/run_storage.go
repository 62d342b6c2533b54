package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.ReportRun) error {
	if run == nil || run.RunID == "" {
		return common.E(common.KindInvalidInput, "storage.run", "run ID is required")
	}

	if err := s.db.Store().Upsert(run.RunID, run); err != nil {
		return common.Wrap(common.KindInternal, "storage.run", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, runID string) (*models.ReportRun, error) {
	var run models.ReportRun
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.E(common.KindNotFound, "storage.run", fmt.Sprintf("run not found: %s", runID))
		}
		return nil, common.Wrap(common.KindInternal, "storage.run", err)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error) {
	query := badgerhold.Where("RunID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.ReportRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.run", err)
	}

	result := make([]*models.ReportRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) ListRunsByStatus(ctx context.Context, status string) ([]*models.ReportRun, error) {
	var runs []models.ReportRun
	if err := s.db.Store().Find(&runs, badgerhold.Where("Status").Eq(status).SortBy("StartedAt").Reverse()); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.run", err)
	}

	result := make([]*models.ReportRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.db.Store().Delete(runID, &models.ReportRun{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return common.E(common.KindNotFound, "storage.run", fmt.Sprintf("run not found: %s", runID))
		}
		return common.Wrap(common.KindInternal, "storage.run", err)
	}
	return nil
}
