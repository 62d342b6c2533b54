package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	companies interfaces.CompanyStorage
	reports   interfaces.ReportStorage
	runs      interfaces.RunStorage
	ingests   interfaces.IngestStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		companies: NewCompanyStorage(db, logger),
		reports:   NewReportStorage(db, logger),
		runs:      NewRunStorage(db, logger),
		ingests:   NewIngestStorage(db, logger),
		logger:    logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Companies returns the company catalog storage interface
func (m *Manager) Companies() interfaces.CompanyStorage {
	return m.companies
}

// Reports returns the report archive storage interface
func (m *Manager) Reports() interfaces.ReportStorage {
	return m.reports
}

// Runs returns the report run storage interface
func (m *Manager) Runs() interfaces.RunStorage {
	return m.runs
}

// Ingests returns the ingestion record storage interface
func (m *Manager) Ingests() interfaces.IngestStorage {
	return m.ingests
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
