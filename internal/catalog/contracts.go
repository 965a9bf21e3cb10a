package catalog

import "context"

// Match is a similarity hit against the known product names.
type Match struct {
	Name  string
	Score float64
}

// Lookup is the read-only product catalog the mapper resolves names against.
// The precedence is fixed: exact alias match first, then similarity match
// above the configured floor, else the raw OCR text stands.
type Lookup interface {
	// ResolveAlias returns the canonical product name for an exact alias hit.
	ResolveAlias(ctx context.Context, rawName string) (string, bool, error)

	// MatchProduct returns the best similarity match at or above minScore.
	MatchProduct(ctx context.Context, rawName string, minScore float64) (Match, bool, error)

	// VendorHints returns the column-alias hints for a known supplier,
	// e.g. {"QTY": "Strips", "FREE": "Deal"}. Empty map for unknown vendors.
	VendorHints(ctx context.Context, supplier string) (map[string]string, error)

	// RejectedHSNPrefixes returns HSN prefixes used to reject false-positive
	// batch numbers recovered by the detective.
	RejectedHSNPrefixes(ctx context.Context) ([]string, error)
}
