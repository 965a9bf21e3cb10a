package entity

import "github.com/pharmstack/invoice-ledger/constants"

// Zone is a spatial/semantic region of the invoice image proposed by the
// layout surveyor. Produced once per run and never mutated afterward.
type Zone struct {
	ID          string             `json:"id"`
	Type        constants.ZoneType `json:"type"`
	Description string             `json:"description"`
}

// IsTable reports whether the zone carries tabular line items.
func (z Zone) IsTable() bool {
	return z.Type == constants.ZonePrimaryTable
}
