package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/llm"
	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// extractZones runs one capability request per planned zone, all zones
// concurrently. A zone failure is recorded on the state and does not abort
// its siblings; the run proceeds with whatever zones succeeded.
//
// On a retry pass (RetryCount > 0) the strategy switches: a single
// whole-page request for a raw markdown table, steered by the critic's last
// feedback. This is the pipeline's self-correction mechanism.
func (p *Pipeline) extractZones(ctx context.Context, state *entity.PipelineState) {
	if state.RetryCount > 0 {
		p.extractWholePage(ctx, state)
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, zone := range state.ExtractionPlan {
		z := zone
		g.Go(func() error {
			if z.IsTable() {
				raw, err := p.Extractor.Extract(gctx, llm.ExtractRequest{
					ImagePath: state.ImagePath,
					Prompt:    fmt.Sprintf(tableZonePrompt, z.Description),
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					state.AddError(fmt.Sprintf("zone %s: %v", z.ID, err))
					p.Logger.Warn("pipeline.worker.zone_failed", "run_id", state.RunID, "zone_id", z.ID, "error", err)
					return nil
				}
				if text := strings.TrimSpace(raw); text != "" {
					state.RawTextRows = append(state.RawTextRows, text)
				}
				return nil
			}

			raw, err := p.Extractor.Extract(gctx, llm.ExtractRequest{
				ImagePath: state.ImagePath,
				Prompt:    fmt.Sprintf(modifierZonePrompt, z.Type, z.Description),
				Schema:    llm.BuildModifiersSchema(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				state.AddError(fmt.Sprintf("zone %s: %v", z.ID, err))
				p.Logger.Warn("pipeline.worker.zone_failed", "run_id", state.RunID, "zone_id", z.ID, "error", err)
				return nil
			}
			mods, anchor, err := decodeModifiers(raw)
			if err != nil {
				state.AddError(fmt.Sprintf("zone %s decode: %v", z.ID, err))
				p.Logger.Warn("pipeline.worker.zone_decode_failed", "run_id", state.RunID, "zone_id", z.ID, "error", err)
				return nil
			}
			state.Modifiers.Merge(mods)
			if anchor > 0 {
				state.AnchorTotal = anchor
			}
			return nil
		})
	}
	_ = g.Wait() // zone errors are captured, never returned

	p.Logger.Info("pipeline.worker.ok",
		"run_id", state.RunID,
		"table_blocks", len(state.RawTextRows),
		"anchor_total", state.AnchorTotal,
		"supplier", state.Modifiers.SupplierName,
	)
}

func (p *Pipeline) extractWholePage(ctx context.Context, state *entity.PipelineState) {
	raw, err := p.Extractor.Extract(ctx, llm.ExtractRequest{
		ImagePath: state.ImagePath,
		Prompt:    retryPromptWith(state.LastFeedback()),
	})
	if err != nil {
		state.AddError(fmt.Sprintf("whole-page retry: %v", err))
		p.Logger.Warn("pipeline.worker.retry_failed", "run_id", state.RunID, "error", err)
		return
	}
	if text := strings.TrimSpace(raw); text != "" {
		state.RawTextRows = append(state.RawTextRows, text)
	}
	p.Logger.Info("pipeline.worker.retry_ok",
		"run_id", state.RunID,
		"retry_count", state.RetryCount,
		"table_blocks", len(state.RawTextRows),
	)
}

// decodeModifiers parses a header/footer key-value payload. The stated
// grand total is returned separately so the caller can copy it into the
// anchor bag for the critic.
func decodeModifiers(raw string) (entity.GlobalModifiers, float64, error) {
	var doc struct {
		SupplierName   string          `json:"supplier_name"`
		InvoiceNumber  string          `json:"invoice_number"`
		InvoiceDate    string          `json:"invoice_date"`
		DiscountAmount json.RawMessage `json:"discount_amount"`
		FreightAmount  json.RawMessage `json:"freight_amount"`
		TaxAmount      json.RawMessage `json:"tax_amount"`
		GrandTotal     json.RawMessage `json:"grand_total"`
	}
	if err := json.Unmarshal(llm.CleanJSON([]byte(raw)), &doc); err != nil {
		return entity.GlobalModifiers{}, 0, err
	}
	mods := entity.GlobalModifiers{
		SupplierName:   strings.TrimSpace(doc.SupplierName),
		InvoiceNumber:  strings.TrimSpace(doc.InvoiceNumber),
		InvoiceDate:    strings.TrimSpace(doc.InvoiceDate),
		DiscountAmount: rawAmount(doc.DiscountAmount),
		FreightAmount:  rawAmount(doc.FreightAmount),
		TaxAmount:      rawAmount(doc.TaxAmount),
		GrandTotal:     rawAmount(doc.GrandTotal),
	}
	return mods, mods.GrandTotal, nil
}

// rawAmount accepts either a JSON number or a noisy string cell.
func rawAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return normalize.ParseAmount(s)
	}
	return 0
}
