package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config mirrors the pool settings we care about.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Open creates a pgx pool for the product catalog.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to catalog database", "dsn", cfg.DSN)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse catalog dsn", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-ledger"

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to catalog database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to catalog database")
	return pool, nil
}

// HealthCheck pings the pool to catch DSN issues early.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging catalog database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return pool.Ping(ctx)
}

type pgLookup struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLookup returns a Lookup backed by the catalog database. Similarity
// matching rides on pg_trgm's similarity() so no embedding service is
// needed at lookup time.
func NewLookup(pool *pgxpool.Pool, logger *slog.Logger) Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &pgLookup{pool: pool, logger: logger}
}

func (l *pgLookup) ResolveAlias(ctx context.Context, rawName string) (string, bool, error) {
	const q = `SELECT canonical_name FROM product_aliases WHERE lower(alias) = lower($1) LIMIT 1`
	var name string
	err := l.pool.QueryRow(ctx, q, rawName).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		l.logger.Error("catalog.alias.query_failed", "raw_name", rawName, "error", err)
		return "", false, err
	}
	return name, true, nil
}

func (l *pgLookup) MatchProduct(ctx context.Context, rawName string, minScore float64) (Match, bool, error) {
	const q = `
SELECT name, similarity(name, $1) AS score
FROM products
WHERE similarity(name, $1) >= $2
ORDER BY score DESC
LIMIT 1`
	var m Match
	err := l.pool.QueryRow(ctx, q, rawName, minScore).Scan(&m.Name, &m.Score)
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, false, nil
	}
	if err != nil {
		l.logger.Error("catalog.match.query_failed", "raw_name", rawName, "error", err)
		return Match{}, false, err
	}
	return m, true, nil
}

func (l *pgLookup) VendorHints(ctx context.Context, supplier string) (map[string]string, error) {
	const q = `
SELECT column_name, alias
FROM vendor_column_hints
WHERE lower(vendor_name) = lower($1)`
	rows, err := l.pool.Query(ctx, q, supplier)
	if err != nil {
		l.logger.Error("catalog.hints.query_failed", "supplier", supplier, "error", err)
		return nil, err
	}
	defer rows.Close()

	hints := map[string]string{}
	for rows.Next() {
		var col, alias string
		if err := rows.Scan(&col, &alias); err != nil {
			return nil, err
		}
		hints[col] = alias
	}
	return hints, rows.Err()
}

func (l *pgLookup) RejectedHSNPrefixes(ctx context.Context) ([]string, error) {
	const q = `SELECT prefix FROM hsn_prefixes ORDER BY prefix`
	rows, err := l.pool.Query(ctx, q)
	if err != nil {
		l.logger.Error("catalog.hsn_prefixes.query_failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
