package backend

import (
	"fmt"

	"expensetracker/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storeType := StoreType(appConfig.StoreBackend)
	if !storeType.IsValid() {
		return Config{}, fmt.Errorf("invalid store type in config: %s", appConfig.StoreBackend)
	}
	busType := BusType(appConfig.BusBackend)
	if !busType.IsValid() {
		return Config{}, fmt.Errorf("invalid bus type in config: %s", appConfig.BusBackend)
	}

	return Config{
		Store:        storeType,
		Bus:          busType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		SyncChannel:  appConfig.SyncChannel,
		InstanceID:   appConfig.InstanceID,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}
	if !c.Bus.IsValid() {
		return fmt.Errorf("invalid bus type: %s", c.Bus)
	}

	if c.Store == SQLiteStore && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite store")
	}

	if c.Bus == AMQPBus {
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for amqp bus")
		}
		if c.SyncChannel == "" {
			return fmt.Errorf("sync channel is required for amqp bus")
		}
	}

	return nil
}

// GetStoreTypes returns all valid store types
func GetStoreTypes() []StoreType {
	return []StoreType{SQLiteStore, MemoryStore}
}

// GetBusTypes returns all valid bus types
func GetBusTypes() []BusType {
	return []BusType{NoBus, AMQPBus}
}
