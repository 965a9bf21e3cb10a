package pipeline

import (
	"math"
	"regexp"
	"strings"

	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// Financial-summary terms that mark a row as noise, not a line item.
var blacklistTerms = []string{
	"total", "subtotal", "sub total", "grand total", "gst", "cgst", "sgst",
	"igst", "freight", "discount", "round off", "roundoff", "taxable",
	"net amount", "carried forward",
}

// Offer/free-goods language that marks a scheme row.
var reSchemeRow = regexp.MustCompile(`(?i)\b(free|offer|scheme|deal|bonus|gift|complimentary)\b`)

// audit is the correctness-enforcing stage: noise and blacklist filtering,
// scheme-row handling, batch self-healing, decimal-shift correction,
// deduplication, HSN forward propagation, quantity-math reconciliation and
// modifier sanitization, in that order. Every repair leaves a note on the
// fragment.
func (p *Pipeline) audit(state *entity.PipelineState) {
	before := len(state.Fragments)

	frags := p.filterNoise(state.Fragments)
	frags = healBatches(frags)
	frags = p.fixDecimalShifts(frags)
	frags = p.deduplicate(frags, state.SingleSource())
	propagateHSN(frags)
	for i := range frags {
		reconcileQuantityMath(&frags[i])
	}
	state.Fragments = frags

	state.Modifiers.Sanitize()

	p.Logger.Info("pipeline.audit.ok",
		"run_id", state.RunID,
		"fragments_in", before,
		"fragments_out", len(state.Fragments),
		"single_source", state.SingleSource(),
	)
}

// filterNoise drops blank/summary rows and scheme rows. Before a scheme row
// is dropped it is scavenged for a batch token on behalf of the previous
// row, which often lost its batch to the offer line beneath it.
func (p *Pipeline) filterNoise(frags []entity.LineItemFragment) []entity.LineItemFragment {
	kept := make([]entity.LineItemFragment, 0, len(frags))
	for _, f := range frags {
		name := strings.TrimSpace(f.Product)
		if name == "" {
			continue
		}
		if isBlacklisted(name) {
			continue
		}
		// Scheme rows are checked before the noise drop: they usually have
		// zero amount too, and their batch token belongs to the row above.
		if reSchemeRow.MatchString(name) && f.Qty == 0 {
			if len(kept) > 0 && kept[len(kept)-1].Batch == "" {
				if tok := normalize.ExtractBatchToken(name + " " + f.Batch); tok != "" {
					prev := &kept[len(kept)-1]
					prev.Batch = tok
					prev.Note("batch scavenged from scheme row")
				}
			}
			continue
		}
		// Near-zero value, no quantity, no batch: OCR residue.
		if f.Amount < 1.0 && f.Qty < 1 && f.Batch == "" {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func isBlacklisted(name string) bool {
	low := normalize.NormalizeName(name)
	for _, term := range blacklistTerms {
		if low == term || strings.HasPrefix(low, term+" ") || strings.HasSuffix(low, " "+term) {
			return true
		}
	}
	return false
}

// healBatches extracts a batch-like token embedded in the description when
// the batch field itself is empty.
func healBatches(frags []entity.LineItemFragment) []entity.LineItemFragment {
	for i := range frags {
		f := &frags[i]
		if f.Batch != "" {
			continue
		}
		if tok := normalize.ExtractBatchToken(f.Product); tok != "" {
			f.Batch = tok
			f.Note("batch recovered from description")
		}
	}
	return frags
}

// fixDecimalShifts repairs the two-decimal-place OCR shift: an amount in
// the tens of thousands against a double-digit quantity is a misplaced
// decimal point, not a real value. A shift is applied at most once per
// value: either the shifted value closes the qty x rate x amount triple,
// or, when the triple is incomplete, the shifted value must land at or
// below the floor so the repair cannot re-trigger on its own output.
func (p *Pipeline) fixDecimalShifts(frags []entity.LineItemFragment) []entity.LineItemFragment {
	for i := range frags {
		f := &frags[i]
		if f.Amount > p.Cfg.AmountShiftFloor && f.Qty < 100 &&
			shiftFits(f.Amount/100, f.Qty*f.Rate, p.Cfg.AmountShiftFloor) {
			f.Amount = f.Amount / 100
			f.Note("amount decimal shift corrected (/100)")
		}
		if f.Rate > p.Cfg.RateShiftFloor &&
			shiftFits(f.Rate/100, rateFromRow(f), p.Cfg.RateShiftFloor) {
			f.Rate = f.Rate / 100
			f.Note("rate decimal shift corrected (/100)")
		}
	}
	return frags
}

// rateFromRow derives the rate implied by the row's own arithmetic, or 0
// when the row carries no usable quantity and amount.
func rateFromRow(f *entity.LineItemFragment) float64 {
	if f.Qty > 0 && f.Amount > 0 {
		return f.Amount / f.Qty
	}
	return 0
}

// shiftFits reports whether dividing a value by 100 is a safe repair.
// With a known expected value the shifted one must agree with it within
// a 5% band; without one it must end up at or below the floor, so a value
// that would still exceed the floor after shifting is left alone.
func shiftFits(shifted, expect, floor float64) bool {
	if expect > 0 {
		tol := 0.05 * expect
		if tol < 2 {
			tol = 2
		}
		return math.Abs(shifted-expect) <= tol
	}
	return shifted <= floor
}

// propagateHSN forward-fills HSN codes: adjacent rows usually share an HSN
// block, so a row lacking one inherits the last seen code.
func propagateHSN(frags []entity.LineItemFragment) {
	last := ""
	for i := range frags {
		f := &frags[i]
		if f.HSNCode == "" && f.HSNRaw != "" {
			f.HSNCode = normalize.NormalizeHSN(f.HSNRaw)
		}
		if f.HSNCode != "" {
			last = f.HSNCode
			continue
		}
		if last != "" {
			f.HSNCode = last
			f.Note("hsn inherited from previous row")
		}
	}
}
