package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"rareport/internal/amqp"
	"rareport/internal/journal"
	"rareport/internal/log"
)

// JournalWorker stores upload events consumed from AMQP.
type JournalWorker struct {
	store     journal.Recorder
	logger    *log.Logger
	processed atomic.Int64
}

func NewJournalWorker(store journal.Recorder, logger *log.Logger) *JournalWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalWorker{store: store, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleUploadProcessed records one event. An error makes the consumer
// requeue the message.
func (w *JournalWorker) HandleUploadProcessed(ctx context.Context, msg *amqp.UploadProcessedMessage) error {
	s := msg.Summary
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = msg.PublishedAt
	}
	if err := w.store.Record(ctx, s); err != nil {
		return fmt.Errorf("record upload summary: %w", err)
	}
	w.processed.Add(1)

	w.logger.InfoContext(ctx, "Upload event stored",
		log.FieldSessionID, s.SessionID,
		log.FieldFilename, s.Filename,
		"status", s.Status)
	return nil
}

// Processed returns the number of events stored since start.
func (w *JournalWorker) Processed() int64 {
	return w.processed.Load()
}
