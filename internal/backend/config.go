package backend

import (
	"fmt"

	"rareport/internal/config"
)

// FromAppConfig converts the application config to a journal config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bt := BackendType(appConfig.JournalBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid journal backend in config: %s", appConfig.JournalBackend)
	}
	return Config{
		Type:         bt,
		Size:         appConfig.JournalSize,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite journal")
		}
	case AMQPBackend:
		if c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP URL, exchange and queue are required for amqp journal")
		}
	}
	return nil
}

// BackendTypes returns all valid backend types.
func BackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, AMQPBackend}
}
