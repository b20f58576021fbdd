package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rareport/internal/backend"
	"rareport/internal/cli"
	"rareport/internal/core"
	apphttp "rareport/internal/http"
	"rareport/internal/log"
	"rareport/internal/middleware/ratelimit"
	"rareport/internal/pipeline"
	"rareport/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	enc, err := pipeline.LookupEncoding(cfg.InputEncoding)
	if err != nil {
		logger.Error("Unsupported input encoding", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid journal configuration", log.FieldError, err)
		os.Exit(1)
	}
	journal, err := backend.NewFactory(logger).CreateJournal(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize journal", log.FieldError, err, log.FieldBackend, backendCfg.Type)
		os.Exit(1)
	}

	reports := services.NewReportService(services.Config{
		Encoding:   enc,
		SessionTTL: cfg.SessionTTL,
		SessionMax: cfg.SessionMax,
		Journal:    journal.Journal,
		Logger:     logger,
	})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Reports:        reports,
		Journal:        journal.Journal,
		Ready:          journal.Ready,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Currency:       core.DefaultCurrency,
		UploadLimit:    ratelimit.Config{Requests: cfg.UploadRateLimit, Window: cfg.UploadRateWindow},
		Logger:         logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if cerr := reports.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if journal.Cleanup != nil {
			if cerr := journal.Cleanup(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		return err
	})

	logger.Info("Starting rareport server",
		"port", cfg.Port,
		log.FieldBackend, backendCfg.Type,
		"encoding", cfg.InputEncoding,
		"session_ttl", cfg.SessionTTL,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
