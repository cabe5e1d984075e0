package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	session interfaces.SessionStorage
	task    interfaces.TaskStorage
	lock    interfaces.LockManager
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		session: NewSessionStorage(db, config.Sessions.TTL, logger),
		task:    NewTaskStorage(db, logger),
		lock:    NewLockStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SessionStorage returns the session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

// TaskStorage returns the task tracking storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.task
}

// LockManager returns the distributed lock manager
func (m *Manager) LockManager() interfaces.LockManager {
	return m.lock
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
