package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/fewshot"
	"github.com/pharmstack/invoice-ledger/internal/llm"
	"github.com/pharmstack/invoice-ledger/internal/normalize"
)

// rawLineItem is the canonical row shape after sanitization; every field is
// a string so the normalizer owns all numeric parsing.
type rawLineItem struct {
	Product string `json:"product"`
	Pack    string `json:"pack"`
	Qty     string `json:"qty"`
	Free    string `json:"free"`
	Batch   string `json:"batch"`
	Expiry  string `json:"expiry"`
	HSN     string `json:"hsn"`
	Rate    string `json:"rate"`
	Amount  string `json:"amount"`
	MRP     string `json:"mrp"`
}

// mapRows converts the raw table text into typed line-item fragments. The
// capability does the column binding, seeded with vendor hints and at most
// one past example; alias resolution then standardizes product names.
// Malformed capability output degrades to an empty fragment list.
func (p *Pipeline) mapRows(ctx context.Context, state *entity.PipelineState) {
	if len(state.RawTextRows) == 0 {
		p.Logger.Warn("pipeline.mapper.no_rows", "run_id", state.RunID)
		return
	}

	hints := p.vendorHints(ctx, state)
	example := p.lookupExample(ctx, state)

	raw, err := p.Extractor.Extract(ctx, llm.ExtractRequest{
		ImagePath: state.ImagePath,
		Prompt:    mapPrompt(state.RawTextRows, hints, example),
		Schema:    llm.BuildLineItemsSchema(),
	})
	if err != nil {
		state.AddError(fmt.Sprintf("map rows: %v", err))
		p.Logger.Error("pipeline.mapper.extract_failed", "run_id", state.RunID, "error", err)
		return
	}

	cleaned, _, err := llm.NormalizeLineItemJSON(llm.CleanJSON([]byte(raw)), p.Logger)
	if err != nil {
		state.AddError(fmt.Sprintf("map sanitize: %v", err))
		p.Logger.Error("pipeline.mapper.sanitize_failed", "run_id", state.RunID, "error", err)
		return
	}

	var doc struct {
		Items []rawLineItem `json:"items"`
	}
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		state.AddError(fmt.Sprintf("map decode: %v", err))
		p.Logger.Error("pipeline.mapper.decode_failed", "run_id", state.RunID, "error", err)
		return
	}

	for _, item := range doc.Items {
		frag := entity.LineItemFragment{
			Product: item.Product,
			Pack:    normalize.ParsePack(item.Pack),
			Qty:     float64(normalize.ParseQuantity(item.Qty)),
			Free:    float64(normalize.ParseQuantity(item.Free)),
			Batch:   normalize.CleanBatch(item.Batch),
			Expiry:  item.Expiry,
			HSNRaw:  item.HSN,
			HSNCode: normalize.NormalizeHSN(item.HSN),
			Rate:    normalize.ParseAmount(item.Rate),
			Amount:  normalize.ParseAmount(item.Amount),
			MRP:     normalize.ParseAmount(item.MRP),
		}
		p.resolveName(ctx, &frag)
		state.Fragments = append(state.Fragments, frag)
	}

	p.Logger.Info("pipeline.mapper.ok",
		"run_id", state.RunID,
		"fragments", len(state.Fragments),
		"vendor_hints", len(hints),
		"example_used", example != nil,
	)
}

// resolveName standardizes the product name: exact alias table first, then
// a high-confidence similarity match; either overwrites the standard name
// and records match type and confidence in the logic note.
func (p *Pipeline) resolveName(ctx context.Context, frag *entity.LineItemFragment) {
	if p.Catalog == nil || frag.Product == "" {
		return
	}
	if name, ok, err := p.Catalog.ResolveAlias(ctx, frag.Product); err == nil && ok {
		frag.StandardItemName = name
		frag.Note("name: alias exact match")
		return
	}
	m, ok, err := p.Catalog.MatchProduct(ctx, frag.Product, p.Cfg.ProductMatchMin)
	if err != nil || !ok {
		return
	}
	frag.StandardItemName = m.Name
	frag.Note(fmt.Sprintf("name: similarity match %.2f", m.Score))
}

func (p *Pipeline) vendorHints(ctx context.Context, state *entity.PipelineState) map[string]string {
	if p.Catalog == nil || state.Modifiers.SupplierName == "" {
		return nil
	}
	hints, err := p.Catalog.VendorHints(ctx, state.Modifiers.SupplierName)
	if err != nil {
		p.Logger.Warn("pipeline.mapper.hints_failed", "run_id", state.RunID, "error", err)
		return nil
	}
	return hints
}

func (p *Pipeline) lookupExample(ctx context.Context, state *entity.PipelineState) *fewshot.Example {
	if p.Examples == nil {
		return nil
	}
	ex, err := p.Examples.Lookup(ctx, state.Modifiers.SupplierName, state.RawTextRows[0], p.Cfg.ExampleMatchMin)
	if err != nil {
		p.Logger.Warn("pipeline.mapper.example_lookup_failed", "run_id", state.RunID, "error", err)
		return nil
	}
	return ex
}
