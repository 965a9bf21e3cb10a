package pipeline

import (
	"fmt"
	"math"

	"github.com/pharmstack/invoice-ledger/internal/entity"
)

// reconcileQuantityMath enforces quantity x rate ~ amount on a fragment.
// The repair rules are fixed:
//
//   - A quantity of exactly 1 against an amount/rate quotient that rounds
//     cleanly to a larger integer is a default-quantity hallucination; the
//     math wins and quantity is corrected.
//   - Otherwise, on a mismatch beyond tolerance, an explicitly extracted
//     quantity is trusted and the rate is recomputed; a missing quantity is
//     derived from amount/rate, floored at 1.
//
// Anomalies are always repaired locally and noted, never surfaced as errors.
func reconcileQuantityMath(f *entity.LineItemFragment) {
	if f.Amount <= 0 {
		return
	}

	if f.Rate > 0 && math.Abs(f.Qty-1) < 1e-9 {
		q := f.Amount / f.Rate
		if rounded := math.Round(q); rounded > 1 && math.Abs(q-rounded) < 0.05 {
			f.Qty = rounded
			f.Note(fmt.Sprintf("qty corrected from 1 to %.0f (amount/rate)", rounded))
			return
		}
	}

	tolerance := math.Max(2.0, 0.05*f.Amount)
	if math.Abs(f.Qty*f.Rate-f.Amount) <= tolerance {
		return
	}

	if f.Qty > 0 {
		f.Rate = f.Amount / f.Qty
		f.Note(fmt.Sprintf("rate recomputed as amount/qty = %.2f", f.Rate))
		return
	}

	if f.Rate > 0 {
		q := math.Round(f.Amount / f.Rate)
		if q < 1 {
			q = 1
		}
		f.Qty = q
		f.Note(fmt.Sprintf("qty derived as round(amount/rate) = %.0f", q))
		// Rounding can leave the triple open; close it on the derived qty
		// so a second audit pass changes nothing.
		if math.Abs(f.Qty*f.Rate-f.Amount) > tolerance {
			f.Rate = f.Amount / f.Qty
			f.Note(fmt.Sprintf("rate recomputed as amount/qty = %.2f", f.Rate))
		}
	}
}
