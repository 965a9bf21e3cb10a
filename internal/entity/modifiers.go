package entity

import "math"

// GlobalModifiers carries invoice-level fields extracted from header and
// footer zones. The numeric fields are magnitudes; semantic sign is implied
// by the field name, not by the extracted value.
type GlobalModifiers struct {
	SupplierName   string  `json:"supplier_name,omitempty"`
	InvoiceNumber  string  `json:"invoice_number,omitempty"`
	InvoiceDate    string  `json:"invoice_date,omitempty"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
	FreightAmount  float64 `json:"freight_amount,omitempty"`
	TaxAmount      float64 `json:"tax_amount,omitempty"`
	GrandTotal     float64 `json:"grand_total,omitempty"`
}

// Sanitize coerces the numeric modifier fields to non-negative magnitudes.
func (g *GlobalModifiers) Sanitize() {
	g.DiscountAmount = math.Abs(g.DiscountAmount)
	g.FreightAmount = math.Abs(g.FreightAmount)
	g.TaxAmount = math.Abs(g.TaxAmount)
	g.GrandTotal = math.Abs(g.GrandTotal)
}

// Merge copies non-zero fields from other into g without overwriting
// fields that already hold a value.
func (g *GlobalModifiers) Merge(other GlobalModifiers) {
	if g.SupplierName == "" {
		g.SupplierName = other.SupplierName
	}
	if g.InvoiceNumber == "" {
		g.InvoiceNumber = other.InvoiceNumber
	}
	if g.InvoiceDate == "" {
		g.InvoiceDate = other.InvoiceDate
	}
	if g.DiscountAmount == 0 {
		g.DiscountAmount = other.DiscountAmount
	}
	if g.FreightAmount == 0 {
		g.FreightAmount = other.FreightAmount
	}
	if g.TaxAmount == 0 {
		g.TaxAmount = other.TaxAmount
	}
	if g.GrandTotal == 0 {
		g.GrandTotal = other.GrandTotal
	}
}
