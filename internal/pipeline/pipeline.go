// Package pipeline turns one photographed pharmacy invoice into a
// financially consistent line-item ledger. Stages run in a fixed order --
// survey, extract, map, audit, investigate, judge -- with the critic's
// verdict as the only branch point and a bounded retry loop back to
// extraction.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/catalog"
	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/fewshot"
	"github.com/pharmstack/invoice-ledger/internal/llm"
)

// Pipeline wires the extraction capability and the read-only collaborators
// into the stage sequence. One Pipeline may process many invoices; all
// per-invoice state lives in entity.PipelineState.
type Pipeline struct {
	Logger    *slog.Logger
	Cfg       common.PipelineConfig
	Extractor llm.Extractor
	Catalog   catalog.Lookup
	Examples  fewshot.Store
}

func NewPipeline(logger *slog.Logger, cfg common.PipelineConfig, ex llm.Extractor, cat catalog.Lookup, examples fewshot.Store) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryCeiling == 0 {
		cfg.RetryCeiling = 2
	}
	if cfg.FuzzyNameRatio == 0 {
		cfg.FuzzyNameRatio = 0.94
	}
	if cfg.ProductMatchMin == 0 {
		cfg.ProductMatchMin = 0.92
	}
	if cfg.ExampleMatchMin == 0 {
		cfg.ExampleMatchMin = 0.80
	}
	if cfg.ApproveBand == 0 {
		cfg.ApproveBand = 0.01
	}
	if cfg.CorrectionCeil == 0 {
		cfg.CorrectionCeil = 1.30
	}
	if cfg.CorrectionFloor == 0 {
		cfg.CorrectionFloor = 0.70
	}
	if cfg.MRPHealthMin == 0 {
		cfg.MRPHealthMin = 0.50
	}
	if cfg.AmountShiftFloor == 0 {
		cfg.AmountShiftFloor = 10000
	}
	if cfg.RateShiftFloor == 0 {
		cfg.RateShiftFloor = 5000
	}
	return &Pipeline{Logger: logger, Cfg: cfg, Extractor: ex, Catalog: cat, Examples: examples}
}

// Run processes one invoice image to completion. It returns a FinalOutput
// for every run that produced any usable line items; "completed" and
// "completed with unresolved mismatch" are both non-error outcomes. Only a
// total absence of usable zones and items after retries is an error.
func (p *Pipeline) Run(ctx context.Context, imagePath string) (*entity.FinalOutput, error) {
	state := entity.NewPipelineState(imagePath)
	ctx = common.WithRunID(ctx, state.RunID.String())
	start := time.Now()
	p.Logger.Info("pipeline.run.start", "run_id", state.RunID, "image", imagePath)

	if err := p.survey(ctx, state); err != nil {
		state.Status = constants.StageFailed
		p.Logger.Error("pipeline.run.failed", "run_id", state.RunID, "stage", "survey", "error", err)
		return nil, fmt.Errorf("survey: %w", err)
	}
	state.Status = constants.StageSurveyed

	for {
		p.extractZones(ctx, state)
		state.Status = constants.StageExtracted

		p.mapRows(ctx, state)
		state.Status = constants.StageMapped

		p.audit(state)
		state.Status = constants.StageAudited

		p.investigate(ctx, state)
		state.Status = constants.StageInvestigated

		verdict, factor, feedback := p.judge(state)
		state.Verdict = verdict
		state.CorrectionFactor = factor
		state.Status = constants.StageJudged
		if feedback != "" {
			state.AddFeedback(feedback)
		}
		p.Logger.Info("pipeline.judge.verdict",
			"run_id", state.RunID,
			"verdict", verdict,
			"factor", factor,
			"retry_count", state.RetryCount,
			"feedback", feedback,
		)

		if verdict != constants.VerdictRetryOCR {
			p.solve(state, verdict, factor)
			state.Status = constants.StageDone
			break
		}

		if state.RetryCount >= p.Cfg.RetryCeiling {
			// Ceiling hit: assemble best-effort output and flag it.
			p.solve(state, verdict, 1.0)
			state.Final.Unresolved = true
			state.Status = constants.StageDone
			p.Logger.Warn("pipeline.retry.ceiling",
				"run_id", state.RunID, "retry_count", state.RetryCount)
			break
		}

		state.RetryCount++
		state.Status = constants.StageRetrying
		// Stale extraction is discarded; the retry repopulates it.
		state.RawTextRows = nil
		state.Fragments = nil
		p.Logger.Info("pipeline.retry.loop", "run_id", state.RunID, "retry_count", state.RetryCount)
	}

	if state.Final == nil || (len(state.Final.LineItems) == 0 && len(state.ExtractionPlan) == 0) {
		return nil, common.NewAppError("PIPELINE_EMPTY", "no usable zones or line items", common.ErrNoLineItems)
	}

	p.confirm(ctx, state)

	p.Logger.Info("pipeline.run.ok",
		"run_id", state.RunID,
		"verdict", state.Verdict,
		"line_items", len(state.Final.LineItems),
		"unresolved", state.Final.Unresolved,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return state.Final, nil
}

// confirm feeds an approved extraction back into the example cache so the
// next invoice from this supplier gets an exact-vendor few-shot example.
func (p *Pipeline) confirm(ctx context.Context, state *entity.PipelineState) {
	if p.Examples == nil || state.Verdict != constants.VerdictApprove {
		return
	}
	if len(state.RawTextRows) == 0 || state.Final == nil || len(state.Final.LineItems) == 0 {
		return
	}
	rawText := state.RawTextRows[0]
	finalJSON := mustJSON(state.Final.LineItems)
	if err := p.Examples.Save(ctx, state.Modifiers.SupplierName, rawText, finalJSON); err != nil {
		p.Logger.Warn("pipeline.confirm.save_failed", "run_id", state.RunID, "error", err)
	}
}
