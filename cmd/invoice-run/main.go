package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/pharmstack/invoice-ledger/internal/catalog"
	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/fewshot"
	"github.com/pharmstack/invoice-ledger/internal/llm/openai"
	"github.com/pharmstack/invoice-ledger/internal/pipeline"
)

// invoice-run processes a single invoice image and prints the FinalOutput
// JSON to stdout.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "invoice-run <image-path>")
		os.Exit(2)
	}
	imagePath := os.Args[1]
	if _, err := os.Stat(imagePath); err != nil {
		logger.Error("image not readable", "path", imagePath, "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
		Backoff:     cfg.LLM.Backoff,
	}, logger)

	// Catalog and example cache are optional for a one-shot run.
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

	out, err := p.Run(ctx, imagePath)
	if err != nil {
		logger.Error("pipeline failed", "image", imagePath, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
