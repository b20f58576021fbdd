package backend

import (
	"context"

	"rareport/internal/journal"
)

// Journal records upload summaries and lists recent ones.
type Journal interface {
	journal.Recorder
	journal.Lister
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a ready journal plus its cleanup and readiness check.
type Result struct {
	Journal Journal
	Cleanup CleanupFunc
	// Ready reports whether the backing store is reachable. It is nil for
	// backends that cannot become unavailable.
	Ready func(ctx context.Context) error
}

// Factory creates journals based on configuration.
type Factory interface {
	CreateJournal(ctx context.Context, config Config) (*Result, error)
}

// Config holds what the factory needs to build a journal.
type Config struct {
	Type BackendType

	// Size bounds the in-process ring used by memory and amqp journals.
	Size int

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a journal implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	AMQPBackend   BackendType = "amqp"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, AMQPBackend:
		return true
	default:
		return false
	}
}
