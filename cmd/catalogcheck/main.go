package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pharmstack/invoice-ledger/internal/catalog"
	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/fewshot"
)

// catalogcheck probes the catalog database and the few-shot example cache
// so deployment problems surface before the first invoice does.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Catalog.DSN == "" {
		logger.Error("CATALOG_DB_URL required")
		os.Exit(1)
	}

	pool, err := catalog.Open(ctx, catalog.Config{
		DSN:             cfg.Catalog.DSN,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: time.Minute,
		DialTimeout:     cfg.Catalog.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open catalog", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := catalog.HealthCheck(ctx, pool, cfg.Catalog.DialTimeout, logger); err != nil {
		logger.Error("catalog ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog OK")

	lookup := catalog.NewLookup(pool, logger)
	if prefixes, err := lookup.RejectedHSNPrefixes(ctx); err != nil {
		logger.Warn("hsn prefix table unreachable", "error", err)
	} else {
		logger.Info("hsn prefix table OK", "prefixes", len(prefixes))
	}

	st, err := fewshot.OpenSQLite(cfg.Catalog.FewshotPath, logger)
	if err != nil {
		logger.Error("example cache open failed", "path", cfg.Catalog.FewshotPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("close example cache", "error", cerr)
		}
	}()
	logger.Info("example cache OK", "path", cfg.Catalog.FewshotPath)
}
