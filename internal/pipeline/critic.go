package pipeline

import (
	"fmt"
	"math"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/entity"
)

// judge compares the line-amount sum against the stated grand total and
// issues the verdict that drives the state machine. It is the only stage
// with outgoing branches.
func (p *Pipeline) judge(state *entity.PipelineState) (constants.Verdict, float64, string) {
	if len(state.Fragments) == 0 {
		return constants.VerdictRetryOCR, 0, "no line items were extracted; re-read the product table"
	}

	withMRP := 0
	for i := range state.Fragments {
		if state.Fragments[i].MRP > 0 {
			withMRP++
		}
	}
	if float64(withMRP)/float64(len(state.Fragments)) < p.Cfg.MRPHealthMin {
		return constants.VerdictRetryOCR, 0, "missed MRP column"
	}

	lineSum := state.LineAmountSum()
	stated := state.StatedTotal()
	if stated <= 0 {
		// Nothing to reconcile against; accept the line sum as is.
		return constants.VerdictApprove, 1.0, "no stated grand total found; accepting line sum"
	}
	if lineSum <= 0 {
		return constants.VerdictRetryOCR, 0, "line amounts sum to zero; re-read the product table"
	}

	ratio := stated / lineSum

	switch {
	case math.Abs(1-ratio) < p.Cfg.ApproveBand:
		return constants.VerdictApprove, 1.0, ""

	case ratio > 1.0 && ratio < p.Cfg.CorrectionCeil:
		return constants.VerdictApplyMarkup, ratio, ""

	case ratio > p.Cfg.CorrectionFloor && ratio < 1.0:
		return constants.VerdictApplyMarkdown, ratio, ""

	case ratio >= p.Cfg.CorrectionCeil:
		return constants.VerdictRetryOCR, 0, fmt.Sprintf(
			"line items sum to %.2f but the invoice states %.2f; about %.2f of value is missing, likely unread rows",
			lineSum, stated, stated-lineSum)

	default:
		return constants.VerdictRetryOCR, 0, fmt.Sprintf(
			"line items sum to %.2f but the invoice states only %.2f; about %.2f of excess value was read, likely duplicated or summary rows",
			lineSum, stated, lineSum-stated)
	}
}
