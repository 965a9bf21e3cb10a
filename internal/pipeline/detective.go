package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/llm"
	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// investigate runs a second, item-targeted extraction pass for fragments
// the audit left without a batch number. One request per missing field
// only; fragments that already carry a batch cost nothing.
func (p *Pipeline) investigate(ctx context.Context, state *entity.PipelineState) {
	missing := 0
	recovered := 0

	rejectPrefixes := p.hsnRejectPrefixes(ctx)

	for i := range state.Fragments {
		f := &state.Fragments[i]
		if f.Batch != "" {
			continue
		}
		missing++

		raw, err := p.Extractor.Extract(ctx, llm.ExtractRequest{
			ImagePath: state.ImagePath,
			Prompt:    batchPrompt(f.DisplayName()),
			Schema:    llm.BuildBatchSchema(),
		})
		if err != nil {
			p.Logger.Warn("pipeline.detective.lookup_failed",
				"run_id", state.RunID, "product", f.DisplayName(), "error", err)
			continue
		}

		var ans struct {
			Batch string `json:"batch"`
		}
		if err := json.Unmarshal(llm.CleanJSON([]byte(raw)), &ans); err != nil {
			p.Logger.Warn("pipeline.detective.decode_failed",
				"run_id", state.RunID, "product", f.DisplayName(), "error", err)
			continue
		}

		batch := normalize.CleanBatch(ans.Batch)
		if batch == "" {
			continue
		}
		if rejectBatch(batch, f.HSNCode, rejectPrefixes) {
			p.Logger.Debug("pipeline.detective.rejected",
				"run_id", state.RunID, "product", f.DisplayName(), "value", batch)
			continue
		}
		f.Batch = batch
		f.Note("batch recovered by targeted re-extraction")
		recovered++
	}

	p.Logger.Info("pipeline.detective.ok",
		"run_id", state.RunID,
		"missing", missing,
		"recovered", recovered,
	)
}

// rejectBatch filters false positives: an answer equal to the row's HSN
// code, or starting with a known HSN prefix, is the model reading the
// wrong column.
func rejectBatch(batch, hsnCode string, prefixes []string) bool {
	digits := normalize.NormalizeHSN(batch)
	if hsnCode != "" && digits == hsnCode {
		return true
	}
	for _, pre := range prefixes {
		// Prefixes are checked against the cleaned answer itself, so an
		// HSN read with a trailing suffix ("3004AB") is still caught.
		if pre != "" && strings.HasPrefix(batch, pre) {
			return true
		}
	}
	return false
}

func (p *Pipeline) hsnRejectPrefixes(ctx context.Context) []string {
	if p.Catalog == nil {
		return nil
	}
	prefixes, err := p.Catalog.RejectedHSNPrefixes(ctx)
	if err != nil {
		p.Logger.Warn("pipeline.detective.prefixes_failed", "error", err)
		return nil
	}
	return prefixes
}
