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

// CompanyStorage implements the CompanyStorage interface for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CompanyStorage) UpsertCompany(ctx context.Context, company *models.Company) error {
	if company == nil || company.Code == "" {
		return common.E(common.KindInvalidInput, "storage.company", "company code is required")
	}

	now := time.Now()
	if company.CreatedAt.IsZero() {
		var existing models.Company
		if err := s.db.Store().Get(company.Code, &existing); err == nil {
			company.CreatedAt = existing.CreatedAt
		} else {
			company.CreatedAt = now
		}
	}
	company.UpdatedAt = now

	if err := s.db.Store().Upsert(company.Code, company); err != nil {
		return common.Wrap(common.KindInternal, "storage.company", err)
	}
	return nil
}

func (s *CompanyStorage) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	var company models.Company
	if err := s.db.Store().Get(code, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, common.E(common.KindNotFound, "storage.company", fmt.Sprintf("company not found: %s", code))
		}
		return nil, common.Wrap(common.KindInternal, "storage.company", err)
	}
	return &company, nil
}

func (s *CompanyStorage) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("Code").Ne("").SortBy("Code")); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.company", err)
	}

	result := make([]*models.Company, len(companies))
	for i := range companies {
		result[i] = &companies[i]
	}
	return result, nil
}

func (s *CompanyStorage) ListCompaniesByIndustry(ctx context.Context, industry string) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("Industry").Eq(industry).SortBy("Code")); err != nil {
		return nil, common.Wrap(common.KindInternal, "storage.company", err)
	}

	result := make([]*models.Company, len(companies))
	for i := range companies {
		result[i] = &companies[i]
	}
	return result, nil
}

func (s *CompanyStorage) DeleteCompany(ctx context.Context, code string) error {
	if err := s.db.Store().Delete(code, &models.Company{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return common.E(common.KindNotFound, "storage.company", fmt.Sprintf("company not found: %s", code))
		}
		return common.Wrap(common.KindInternal, "storage.company", err)
	}
	return nil
}

func (s *CompanyStorage) CountCompanies(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Company{}, nil)
	if err != nil {
		return 0, common.Wrap(common.KindInternal, "storage.company", err)
	}
	return int(count), nil
}
