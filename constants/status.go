package constants

// StageStatus is the canonical progress marker for a pipeline run.
type StageStatus string

// Stable values (these exact strings appear in logs and run records).
const (
	StageSurveyed     StageStatus = "SURVEYED"     // layout plan produced
	StageExtracted    StageStatus = "EXTRACTED"    // zone text collected
	StageMapped       StageStatus = "MAPPED"       // fragments bound to schema
	StageAudited      StageStatus = "AUDITED"      // dedup + math repair done
	StageInvestigated StageStatus = "INVESTIGATED" // targeted batch recovery done
	StageJudged       StageStatus = "JUDGED"       // critic verdict issued
	StageCorrected    StageStatus = "CORRECTED"    // solver applied correction
	StageRetrying     StageStatus = "RETRYING"     // looping back to extraction
	StageDone         StageStatus = "DONE"         // terminal success
	StageFailed       StageStatus = "FAILED"       // terminal failure (no usable output)
)

// Verdict is the Critic's classification of a run; it is the only value
// that selects the next pipeline transition.
type Verdict string

const (
	VerdictApprove       Verdict = "APPROVE"
	VerdictApplyMarkup   Verdict = "APPLY_MARKUP"
	VerdictApplyMarkdown Verdict = "APPLY_MARKDOWN"
	VerdictRetryOCR      Verdict = "RETRY_OCR"
)
