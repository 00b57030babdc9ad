package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	sessions interfaces.SessionStorage
	kv       interfaces.KeyValueStorage
	logger   arbor.ILogger
}

// NewManager creates a storage manager with all storage services
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		sessions: NewSessionStorage(db, logger),
		kv:       NewKVStorage(db, logger),
		logger:   logger,
	}, nil
}

// SessionStorage returns the session storage service
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// KeyValueStorage returns the key/value storage service
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close releases the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}
