package pipeline

import (
	"fmt"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/entity"
)

// Sales tiers: from MRP when it is known, from landed cost when it is not.
const (
	tierMRPB = 0.90
	tierMRPC = 0.80

	tierCostA = 1.50
	tierCostB = 1.30
	tierCostC = 1.20
)

// solve applies the correction factor uniformly to every surviving
// fragment's net amount -- the unconditional force-match policy -- then
// derives per-unit landed cost and the three sales tiers, and assembles the
// final output. An APPROVE verdict passes through with factor 1.
func (p *Pipeline) solve(state *entity.PipelineState, verdict constants.Verdict, factor float64) {
	if factor <= 0 {
		factor = 1.0
	}

	items := make([]entity.NormalizedLineItem, 0, len(state.Fragments))
	for i := range state.Fragments {
		f := &state.Fragments[i]

		if factor != 1.0 {
			f.Amount = f.Amount * factor
			f.Note(fmt.Sprintf("amount scaled by correction factor %.4f", factor))
		}

		qty := int(f.Qty)
		if qty < 1 {
			qty = 1
		}
		unitCost := f.Amount / float64(qty)

		var a, b, c float64
		if f.MRP > 0 {
			a, b, c = f.MRP, f.MRP*tierMRPB, f.MRP*tierMRPC
		} else {
			a, b, c = unitCost*tierCostA, unitCost*tierCostB, unitCost*tierCostC
		}

		items = append(items, entity.NormalizedLineItem{
			ItemName:   f.DisplayName(),
			PackSize:   f.Pack,
			Quantity:   qty,
			NetAmount:  f.Amount,
			UnitCost:   unitCost,
			SaleRateA:  a,
			SaleRateB:  b,
			SaleRateC:  c,
			Batch:      f.Batch,
			Expiry:     f.Expiry,
			HSNCode:    f.HSNCode,
			Provenance: f.LogicNote,
		})
	}

	state.CorrectionFactor = factor
	state.Status = constants.StageCorrected
	state.Final = &entity.FinalOutput{
		RunID:     state.RunID,
		Headers:   state.Modifiers,
		LineItems: items,
		Verdict:   verdict,
		Feedback:  state.FeedbackLog,
		Errors:    state.Errors,
	}

	p.Logger.Info("pipeline.solver.ok",
		"run_id", state.RunID,
		"verdict", verdict,
		"factor", factor,
		"line_items", len(items),
	)
}
