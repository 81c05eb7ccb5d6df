package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"expensetracker/internal/amqp"
	"expensetracker/internal/bus"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dialAMQP is swapped in tests.
	dialAMQP func(url, channel, instanceID string) (bus.Bus, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		dialAMQP: func(url, channel, instanceID string) (bus.Bus, error) {
			client, err := amqp.NewClient(url, channel, instanceID)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend implements Factory.CreateBackend. A store failure is fatal;
// a bus failure is not: the instance keeps working alone and the resync
// worker picks up other instances' writes from the shared store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	store, closeStore, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	b, synced := f.createBus(config, instanceID)

	f.logger.Info("Initialized backend",
		log.FieldBackend, config.Store.String(),
		"bus", config.Bus.String(),
		"synced", synced,
		log.FieldInstanceID, instanceID)

	return &BackendResult{
		Store:      store,
		Bus:        b,
		InstanceID: instanceID,
		Synced:     synced,
		Cleanup: func() error {
			return errors.Join(b.Close(), closeStore())
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, CleanupFunc, error) {
	switch config.Store {
	case SQLiteStore:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return store, store.Close, nil
	case MemoryStore:
		f.logger.Info("Initialized memory store")
		return storage.NewMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}
}

func (f *DefaultFactory) createBus(config Config, instanceID string) (bus.Bus, bool) {
	if config.Bus != AMQPBus {
		return bus.Noop{}, false
	}

	client, err := f.dialAMQP(config.AMQPURL, config.SyncChannel, instanceID)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync",
			log.FieldError, err,
			log.FieldChannel, config.SyncChannel)
		return bus.Noop{}, false
	}
	f.logger.Info("Initialized AMQP client", log.FieldChannel, config.SyncChannel)
	return client, true
}
