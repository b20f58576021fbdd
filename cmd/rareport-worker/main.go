package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"rareport/internal/amqp"
	"rareport/internal/cli"
	"rareport/internal/log"
	"rareport/internal/worker"
)

const statsInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting rareport-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	jw := worker.NewJournalWorker(repo, logger)

	sigCtx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)
	g, ctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return client.ConsumeUploadProcessed(ctx, jw.HandleUploadProcessed)
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("Journal worker stats", "processed", jw.Processed())
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	if sigCtx.Err() != nil {
		<-done
	}
	logger.Info("Worker stopped gracefully", "processed", jw.Processed())
}
