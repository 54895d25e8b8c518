package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	audit    interfaces.AuditStorage
	schedule interfaces.ScheduleStorage
	project  interfaces.ProjectStorage
	history  interfaces.JobHistoryStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		audit:    NewAuditStorage(db, logger),
		schedule: NewScheduleStorage(db, logger),
		project:  NewProjectStorage(db, logger),
		history:  NewJobHistoryStorage(db, logger, config.Queue.CompletedHistory, config.Queue.FailedHistory),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")
	return manager, nil
}

// AuditStorage returns the Audit storage interface
func (m *Manager) AuditStorage() interfaces.AuditStorage {
	return m.audit
}

// ScheduleStorage returns the Schedule storage interface
func (m *Manager) ScheduleStorage() interfaces.ScheduleStorage {
	return m.schedule
}

// ProjectStorage returns the Project storage interface
func (m *Manager) ProjectStorage() interfaces.ProjectStorage {
	return m.project
}

// JobHistoryStorage returns the JobHistory storage interface
func (m *Manager) JobHistoryStorage() interfaces.JobHistoryStorage {
	return m.history
}

// DB returns the underlying database connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
