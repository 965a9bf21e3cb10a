// Package fewshot keeps a small local cache of confirmed invoice
// extractions. The mapper seeds its prompt with at most one example:
// an exact vendor hit when available, else the closest raw-text match
// above a fixed similarity floor.
package fewshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// Example pairs the raw zone text of a confirmed invoice with its final
// line-item JSON.
type Example struct {
	Supplier  string
	RawText   string
	FinalJSON string
	Score     float64 // 1.0 for an exact vendor hit
}

// Store is the example cache consulted and fed by the pipeline.
type Store interface {
	// Lookup returns at most one example to seed a mapper prompt, or nil.
	Lookup(ctx context.Context, supplier, rawText string, minScore float64) (*Example, error)
	// Save records a confirmed extraction for future prompts.
	Save(ctx context.Context, supplier, rawText, finalJSON string) error
	Close() error
}

type sqliteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// candidateWindow bounds how many recent examples the similarity scan reads.
const candidateWindow = 200

// OpenSQLite opens (and if needed initializes) the example cache file.
func OpenSQLite(path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open example cache: %w", err)
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS examples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	supplier   TEXT NOT NULL,
	raw_text   TEXT NOT NULL,
	final_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_examples_supplier ON examples(supplier);`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init example cache: %w", err)
	}
	logger.Info("fewshot.cache.opened", "path", path)
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Lookup(ctx context.Context, supplier, rawText string, minScore float64) (*Example, error) {
	// Exact vendor match wins outright.
	if supplier != "" {
		const q = `
SELECT supplier, raw_text, final_json
FROM examples
WHERE lower(supplier) = lower(?)
ORDER BY created_at DESC, id DESC
LIMIT 1`
		var ex Example
		err := s.db.QueryRowContext(ctx, q, supplier).Scan(&ex.Supplier, &ex.RawText, &ex.FinalJSON)
		if err == nil {
			ex.Score = 1.0
			s.logger.Debug("fewshot.lookup.vendor_hit", "supplier", supplier)
			return &ex, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	// Nearest neighbor over recent examples by raw-text similarity.
	const q = `
SELECT supplier, raw_text, final_json
FROM examples
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, candidateWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var best *Example
	probe := normalize.NormalizeName(rawText)
	for rows.Next() {
		var ex Example
		if err := rows.Scan(&ex.Supplier, &ex.RawText, &ex.FinalJSON); err != nil {
			return nil, err
		}
		ex.Score = normalize.SimilarityRatio(probe, normalize.NormalizeName(ex.RawText))
		if ex.Score >= minScore && (best == nil || ex.Score > best.Score) {
			e := ex
			best = &e
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if best != nil {
		s.logger.Debug("fewshot.lookup.similarity_hit", "supplier", best.Supplier, "score", best.Score)
	}
	return best, nil
}

func (s *sqliteStore) Save(ctx context.Context, supplier, rawText, finalJSON string) error {
	const q = `INSERT INTO examples (supplier, raw_text, final_json, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, supplier, rawText, finalJSON, time.Now().UTC())
	if err != nil {
		s.logger.Error("fewshot.save_failed", "supplier", supplier, "error", err)
		return fmt.Errorf("save example: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
