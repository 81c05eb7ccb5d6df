package backend

import (
	"context"

	"expensetracker/internal/bus"
	"expensetracker/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired store and bus plus a cleanup function
// that releases both.
type BackendResult struct {
	Store      storage.Store
	Bus        bus.Bus
	InstanceID string
	// Synced is false when the bus fell back to Noop and this instance runs alone.
	Synced  bool
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates the store and bus described by config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Store StoreType
	Bus   BusType

	// SQLite specific
	SQLiteDBPath string

	// AMQP specific
	AMQPURL     string
	SyncChannel string

	// InstanceID identifies this process on the bus. Generated when empty.
	InstanceID string
}

// StoreType represents the kind of key-value store
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}

// BusType represents the kind of sync bus
type BusType string

const (
	NoBus   BusType = "none"
	AMQPBus BusType = "amqp"
)

// String implements fmt.Stringer
func (bt BusType) String() string {
	return string(bt)
}

// IsValid returns true if the bus type is valid
func (bt BusType) IsValid() bool {
	switch bt {
	case NoBus, AMQPBus:
		return true
	default:
		return false
	}
}
