package pipeline

import (
	"math"
	"strings"
	"testing"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/entity"
)

func judgeState(stated float64, amounts ...float64) *entity.PipelineState {
	state := entity.NewPipelineState("invoice.jpg")
	state.AnchorTotal = stated
	for _, a := range amounts {
		state.Fragments = append(state.Fragments, entity.LineItemFragment{
			Product: "SOME TAB", Qty: 1, Amount: a, MRP: a * 1.2,
		})
	}
	return state
}

func TestJudge_NoLineItemsRetries(t *testing.T) {
	p := testPipeline()
	verdict, _, feedback := p.judge(judgeState(1000))
	if verdict != constants.VerdictRetryOCR {
		t.Fatalf("verdict = %s, want retry", verdict)
	}
	if !strings.Contains(feedback, "no line items") {
		t.Errorf("feedback %q does not name the problem", feedback)
	}
}

func TestJudge_MissedMRPColumnRetries(t *testing.T) {
	p := testPipeline()
	state := judgeState(1000, 400, 300, 300)
	state.Fragments[1].MRP = 0
	state.Fragments[2].MRP = 0

	verdict, _, feedback := p.judge(state)
	if verdict != constants.VerdictRetryOCR {
		t.Fatalf("verdict = %s, want retry on 1/3 MRP coverage", verdict)
	}
	if feedback != "missed MRP column" {
		t.Errorf("feedback = %q, want the MRP hint", feedback)
	}
}

func TestJudge_HalfMRPCoveragePasses(t *testing.T) {
	p := testPipeline()
	state := judgeState(1000, 500, 500)
	state.Fragments[1].MRP = 0

	verdict, _, _ := p.judge(state)
	if verdict != constants.VerdictApprove {
		t.Errorf("verdict = %s, want approve at exactly 50%% coverage", verdict)
	}
}

func TestJudge_NoStatedTotalApproves(t *testing.T) {
	p := testPipeline()
	verdict, factor, feedback := p.judge(judgeState(0, 600, 400))
	if verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve when nothing to reconcile against", verdict)
	}
	if factor != 1.0 {
		t.Errorf("factor = %v, want 1.0", factor)
	}
	if !strings.Contains(feedback, "no stated grand total") {
		t.Errorf("feedback %q does not flag the missing total", feedback)
	}
}

func TestJudge_ApproveWithinBand(t *testing.T) {
	p := testPipeline()
	verdict, factor, feedback := p.judge(judgeState(1005, 600, 400))
	if verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve at ratio 1.005", verdict)
	}
	if factor != 1.0 {
		t.Errorf("factor = %v, want 1.0", factor)
	}
	if feedback != "" {
		t.Errorf("feedback = %q, want none", feedback)
	}
}

func TestJudge_MarkupWithinCeiling(t *testing.T) {
	p := testPipeline()
	verdict, factor, _ := p.judge(judgeState(920, 500, 375))
	if verdict != constants.VerdictApplyMarkup {
		t.Fatalf("verdict = %s, want markup", verdict)
	}
	want := 920.0 / 875.0
	if math.Abs(factor-want) > 1e-9 {
		t.Errorf("factor = %v, want %v", factor, want)
	}
}

func TestJudge_MarkdownWithinFloor(t *testing.T) {
	p := testPipeline()
	verdict, factor, _ := p.judge(judgeState(900, 700, 450))
	if verdict != constants.VerdictApplyMarkdown {
		t.Fatalf("verdict = %s, want markdown", verdict)
	}
	want := 900.0 / 1150.0
	if math.Abs(factor-want) > 1e-9 {
		t.Errorf("factor = %v, want %v", factor, want)
	}
}

func TestJudge_MissingValueRetriesWithQuantifiedFeedback(t *testing.T) {
	p := testPipeline()
	verdict, _, feedback := p.judge(judgeState(500, 100))
	if verdict != constants.VerdictRetryOCR {
		t.Fatalf("verdict = %s, want retry at ratio 5.0", verdict)
	}
	if !strings.Contains(feedback, "400.00") || !strings.Contains(feedback, "missing") {
		t.Errorf("feedback %q does not quantify the missing value", feedback)
	}
}

func TestJudge_ExcessValueRetriesWithQuantifiedFeedback(t *testing.T) {
	p := testPipeline()
	verdict, _, feedback := p.judge(judgeState(500, 600, 400))
	if verdict != constants.VerdictRetryOCR {
		t.Fatalf("verdict = %s, want retry at ratio 0.5", verdict)
	}
	if !strings.Contains(feedback, "500.00") || !strings.Contains(feedback, "excess") {
		t.Errorf("feedback %q does not quantify the excess value", feedback)
	}
}

func TestJudge_ZeroLineSumRetries(t *testing.T) {
	p := testPipeline()
	state := judgeState(1000, 0, 0)
	for i := range state.Fragments {
		state.Fragments[i].MRP = 60
	}
	verdict, _, feedback := p.judge(state)
	if verdict != constants.VerdictRetryOCR {
		t.Fatalf("verdict = %s, want retry on zero line sum", verdict)
	}
	if !strings.Contains(feedback, "zero") {
		t.Errorf("feedback %q does not name the zero sum", feedback)
	}
}
