package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/sauverpro/goFasta/pkg/storage"
)

// store contains all PostgreSQL based sub-stores for managing the models
type store struct {
	devices *deviceStore
}

// NewStore creates a new PostgreSQL based Storage interface
func NewStore(db *sqlx.DB) storage.Interface {
	return &store{
		devices: newDeviceStore(db),
	}
}

// Devices returns a sub-store for managing the Device model
func (s *store) Devices() storage.DeviceStore {
	return s.devices
}
