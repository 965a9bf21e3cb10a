package entity

import (
	"github.com/google/uuid"

	"github.com/pharmstack/invoice-ledger/constants"
)

// PipelineState is the single mutable accumulator threaded through all
// stages of one invoice-processing run. It is owned by exactly one pipeline
// instance; no cross-run sharing.
type PipelineState struct {
	RunID     uuid.UUID `json:"run_id"`
	ImagePath string    `json:"image_path"`

	ExtractionPlan []Zone             `json:"extraction_plan,omitempty"`
	RawTextRows    []string           `json:"raw_text_rows,omitempty"`
	Fragments      []LineItemFragment `json:"fragments,omitempty"`
	Modifiers      GlobalModifiers    `json:"modifiers"`

	// AnchorTotal is the stated grand total copied aside for the critic.
	AnchorTotal float64 `json:"anchor_total,omitempty"`

	RetryCount  int      `json:"retry_count"`
	FeedbackLog []string `json:"feedback_log,omitempty"`

	Status           constants.StageStatus `json:"status"`
	Verdict          constants.Verdict     `json:"verdict,omitempty"`
	CorrectionFactor float64               `json:"correction_factor,omitempty"`

	// Errors collects non-fatal stage errors (zone failures, degraded parses).
	Errors []string `json:"errors,omitempty"`

	Final *FinalOutput `json:"final,omitempty"`
}

// NewPipelineState seeds a run for one invoice image.
func NewPipelineState(imagePath string) *PipelineState {
	return &PipelineState{
		RunID:     uuid.New(),
		ImagePath: imagePath,
	}
}

// AddFeedback appends a critic feedback string used to steer the next retry.
func (s *PipelineState) AddFeedback(msg string) {
	s.FeedbackLog = append(s.FeedbackLog, msg)
}

// LastFeedback returns the most recent critic feedback, or "".
func (s *PipelineState) LastFeedback() string {
	if len(s.FeedbackLog) == 0 {
		return ""
	}
	return s.FeedbackLog[len(s.FeedbackLog)-1]
}

// AddError records a non-fatal stage error on the run.
func (s *PipelineState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// SingleSource reports whether the raw extraction produced at most one
// independent text block for the table; duplicate handling depends on it.
func (s *PipelineState) SingleSource() bool {
	return len(s.RawTextRows) <= 1
}

// LineAmountSum returns the sum of all fragment amounts.
func (s *PipelineState) LineAmountSum() float64 {
	var sum float64
	for i := range s.Fragments {
		sum += s.Fragments[i].Amount
	}
	return sum
}

// StatedTotal prefers the anchor total captured from the footer, falling
// back to the merged modifier field.
func (s *PipelineState) StatedTotal() float64 {
	if s.AnchorTotal > 0 {
		return s.AnchorTotal
	}
	return s.Modifiers.GrandTotal
}

// FinalOutput is the record handed to the caller: invoice-level headers plus
// the normalized line-item ledger.
type FinalOutput struct {
	RunID      uuid.UUID            `json:"run_id"`
	Headers    GlobalModifiers      `json:"headers"`
	LineItems  []NormalizedLineItem `json:"line_items"`
	Verdict    constants.Verdict    `json:"verdict"`
	Unresolved bool                 `json:"unresolved,omitempty"`
	Feedback   []string             `json:"feedback,omitempty"`
	Errors     []string             `json:"errors,omitempty"`
}
