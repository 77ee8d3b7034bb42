package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Google Sheets export is optional
	var exporter sheets.SummaryExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	auditWorker := worker.NewAuditWorker(repo, exporter, cfg.AuditBatchSize)

	// Event consumption is optional; the periodic sweep alone still audits
	// every user.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer events.Close()
	} else {
		logger.Info("AMQP disabled - running on periodic sweeps only")
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, ctx := errgroup.WithContext(shutdownCtx)

	if events != nil {
		g.Go(func() error {
			return events.ConsumeLedgerEvents(ctx, auditWorker.HandleLedgerEvent)
		})
	}

	g.Go(func() error {
		// Sweep once at startup to catch drift from missed events
		if err := auditWorker.AuditAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Startup audit sweep failed", "error", err)
		}

		ticker := time.NewTicker(cfg.AuditInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := auditWorker.AuditAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Periodic audit sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("bilancio-worker stopped")
}
