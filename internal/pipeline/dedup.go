package pipeline

import (
	"math"

	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// deduplicate collapses duplicate fragments. The policy depends on how many
// raw zones contributed text: with a single source, an identical repeated
// row is a legitimate line (split scheme quantities) and both are kept;
// with multiple sources it is redundant OCR of an overlapping zone and the
// second is dropped.
func (p *Pipeline) deduplicate(frags []entity.LineItemFragment, singleSource bool) []entity.LineItemFragment {
	kept := make([]entity.LineItemFragment, 0, len(frags))

	for _, cand := range frags {
		idx := p.findDuplicate(kept, cand)
		if idx < 0 {
			kept = append(kept, cand)
			continue
		}
		prev := &kept[idx]

		switch {
		case !qtyEqual(prev.Qty, cand.Qty):
			// A genuine second line for the same batch.
			kept = append(kept, cand)

		case amountEqual(prev.Amount, cand.Amount):
			if singleSource {
				kept = append(kept, cand)
			} else {
				prev.Note("duplicate row from overlapping zone dropped")
			}

		default:
			// Same quantity, different amount: the lower value is assumed a
			// scheme/summary misread. Keep the higher-amount candidate.
			if cand.Amount > prev.Amount {
				note := prev.LogicNote
				*prev = cand
				prev.LogicNote = note
			}
			prev.Note("merged duplicate, kept higher amount")
		}
	}
	return kept
}

// findDuplicate returns the index in kept of a fragment that duplicates
// cand, or -1. Exact match is normalized name + batch bucket; fuzzy match
// requires unknown batch on both sides and name similarity above the
// configured ratio.
func (p *Pipeline) findDuplicate(kept []entity.LineItemFragment, cand entity.LineItemFragment) int {
	candName := normalize.NormalizeName(cand.DisplayName())
	candBatch := normalize.BatchKey(cand.Batch)

	for i := range kept {
		name := normalize.NormalizeName(kept[i].DisplayName())
		batch := normalize.BatchKey(kept[i].Batch)

		if name == candName && batch == candBatch {
			return i
		}
		if batch == "?" && candBatch == "?" &&
			normalize.SimilarityRatio(name, candName) > p.Cfg.FuzzyNameRatio {
			return i
		}
	}
	return -1
}

func qtyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func amountEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}
