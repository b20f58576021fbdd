package backend

import (
	"context"
	"errors"
	"fmt"

	"rareport/internal/amqp"
	"rareport/internal/core"
	"rareport/internal/journal"
	"rareport/internal/journal/memory"
	"rareport/internal/log"
	"rareport/internal/storage"
)

const defaultSize = 200

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateJournal(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Size < 1 {
		config.Size = defaultSize
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory journal", "size", config.Size)
		return &Result{Journal: memory.New(config.Size)}, nil
	case SQLiteBackend:
		return f.createSQLite(config)
	case AMQPBackend:
		return f.createAMQP(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite journal: %w", err)
	}
	f.logger.Info("Initialized SQLite journal", "db_path", config.SQLiteDBPath)
	return &Result{Journal: repo, Cleanup: repo.Close, Ready: repo.Ping}, nil
}

func (f *DefaultFactory) createAMQP(config Config) (*Result, error) {
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize AMQP journal: %w", err)
	}
	f.logger.Info("Initialized AMQP journal",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return &Result{
		Journal: &publishingJournal{local: memory.New(config.Size), publisher: client},
		Cleanup: client.Close,
	}, nil
}

// publishingJournal keeps a local ring for listing and forwards every
// summary to the durable queue.
type publishingJournal struct {
	local     *memory.Store
	publisher journal.Recorder
}

func (p *publishingJournal) Record(ctx context.Context, s core.UploadSummary) error {
	localErr := p.local.Record(ctx, s)
	return errors.Join(localErr, p.publisher.Record(ctx, s))
}

func (p *publishingJournal) Recent(ctx context.Context, limit int) ([]core.UploadSummary, error) {
	return p.local.Recent(ctx, limit)
}
