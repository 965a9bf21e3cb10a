package entity

import "strings"

// LineItemFragment is a raw, not-yet-finalized line item. The mapper creates
// it, and the auditor, detective and solver repair it in place. There is
// exactly one owner (the pipeline run) at any time.
type LineItemFragment struct {
	Product string  `json:"product"`
	Pack    string  `json:"pack,omitempty"`
	Qty     float64 `json:"qty"`
	Free    float64 `json:"free,omitempty"`
	Batch   string  `json:"batch,omitempty"`
	Expiry  string  `json:"expiry,omitempty"`
	HSNRaw  string  `json:"hsn,omitempty"`
	Rate    float64 `json:"rate,omitempty"`
	Amount  float64 `json:"amount"`
	MRP     float64 `json:"mrp,omitempty"`

	// Resolved fields, set once during mapping.
	StandardItemName string `json:"standard_item_name,omitempty"`
	HSNCode          string `json:"hsn_code,omitempty"`

	// LogicNote is an append-only provenance trail of repairs applied.
	LogicNote string `json:"logic_note,omitempty"`
}

// Note appends a provenance entry to the fragment's logic note.
func (f *LineItemFragment) Note(msg string) {
	if f.LogicNote == "" {
		f.LogicNote = msg
		return
	}
	f.LogicNote += "; " + msg
}

// DisplayName returns the standardized name when resolved, else the raw product text.
func (f *LineItemFragment) DisplayName() string {
	if f.StandardItemName != "" {
		return f.StandardItemName
	}
	return strings.TrimSpace(f.Product)
}

// NormalizedLineItem is the externally consumed record produced by the
// solver at pipeline completion. Immutable thereafter.
type NormalizedLineItem struct {
	ItemName   string  `json:"item_name"`
	PackSize   string  `json:"pack_size,omitempty"`
	Quantity   int     `json:"quantity"`
	NetAmount  float64 `json:"net_amount"`
	UnitCost   float64 `json:"unit_cost"`
	SaleRateA  float64 `json:"sale_rate_a"`
	SaleRateB  float64 `json:"sale_rate_b"`
	SaleRateC  float64 `json:"sale_rate_c"`
	Batch      string  `json:"batch,omitempty"`
	Expiry     string  `json:"expiry,omitempty"`
	HSNCode    string  `json:"hsn_code,omitempty"`
	Provenance string  `json:"provenance,omitempty"`
}
