package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/async"
	"github.com/pharmstack/invoice-ledger/internal/catalog"
	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/export"
	"github.com/pharmstack/invoice-ledger/internal/fewshot"
	"github.com/pharmstack/invoice-ledger/internal/ingest"
	"github.com/pharmstack/invoice-ledger/internal/llm/openai"
	"github.com/pharmstack/invoice-ledger/internal/pipeline"
)

// invoiced watches drop directories for scanned invoices, runs the
// extraction pipeline for each, and writes XLSX ledgers.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.Ingest.Roots) == 0 {
		logger.Error("INGEST_ROOTS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
		Backoff:     cfg.LLM.Backoff,
	}, logger)

	var lookup catalog.Lookup
	if cfg.Catalog.DSN != "" {
		pool, err := catalog.Open(ctx, catalog.Config{
			DSN:             cfg.Catalog.DSN,
			MaxConns:        cfg.Catalog.MaxConns,
			MinConns:        cfg.Catalog.MinConns,
			MaxConnLifetime: cfg.Catalog.MaxConnLifetime,
			MaxConnIdleTime: cfg.Catalog.MaxConnIdleTime,
			DialTimeout:     cfg.Catalog.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("open catalog", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := catalog.HealthCheck(ctx, pool, cfg.Catalog.DialTimeout, logger); err != nil {
			logger.Error("catalog health check failed", "error", err)
			os.Exit(1)
		}
		lookup = catalog.NewLookup(pool, logger)
	}

	var examples fewshot.Store
	if cfg.Catalog.FewshotPath != "" {
		st, err := fewshot.OpenSQLite(cfg.Catalog.FewshotPath, logger)
		if err != nil {
			logger.Warn("open example cache failed, continuing without", "error", err)
		} else {
			examples = st
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logger.Warn("close example cache", "error", cerr)
				}
			}()
		}
	}

	p := pipeline.NewPipeline(logger, cfg.Pipeline, extractor, lookup, examples)
	sink := export.NewService(cfg.Export.Dir, logger)

	queue := async.NewPipelineQueue(p, sink, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithJobTimeout(cfg.Ingest.JobTimeout),
	)

	evCh, errCh, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.Roots,
		InitialScan: cfg.Ingest.InitialScan,
		Debounce:    cfg.Ingest.Debounce,
	}, logger)
	if err != nil {
		logger.Error("start watcher", "error", err)
		os.Exit(1)
	}

	logger.Info("invoiced started",
		"roots", cfg.Ingest.Roots,
		"workers", cfg.Ingest.Workers,
		"export_dir", cfg.Export.Dir,
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			queue.Shutdown(shutdownCtx)
			cancel()
			logger.Info("stopped")
			return
		case path, ok := <-evCh:
			if !ok {
				continue
			}
			file, err := entity.StatInvoiceFile(path)
			if err != nil {
				logger.Warn("skipping unreadable file", "path", path, "error", err)
				continue
			}
			if file.Oversize(constants.MaxVisionMB) {
				logger.Warn("skipping oversize file",
					"path", path, "size_bytes", file.FileSize, "max_mb", constants.MaxVisionMB)
				continue
			}
			_ = queue.Enqueue(ctx, async.Job{
				ImagePath:   file.SourcePath,
				SubmittedAt: file.SeenAt,
				TraceID:     file.ID,
			})
		case werr, ok := <-errCh:
			if ok && werr != nil {
				logger.Warn("watcher error", "error", werr)
			}
		}
	}
}
