package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	ensemble interfaces.EnsembleStorage
	result   interfaces.ResultStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		ensemble: NewEnsembleStorage(db, logger),
		result:   NewResultStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// EnsembleStorage returns the Ensemble storage interface
func (m *Manager) EnsembleStorage() interfaces.EnsembleStorage {
	return m.ensemble
}

// ResultStorage returns the Result storage interface
func (m *Manager) ResultStorage() interfaces.ResultStorage {
	return m.result
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
