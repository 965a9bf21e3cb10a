package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/entity"
	"github.com/pharmstack/invoice-ledger/internal/llm"
)

// survey asks the capability for a zone plan. Transport retries live inside
// the extractor; if the call still fails the run records a fatal error --
// no fallback zone is synthesized.
func (p *Pipeline) survey(ctx context.Context, state *entity.PipelineState) error {
	raw, err := p.Extractor.Extract(ctx, llm.ExtractRequest{
		ImagePath: state.ImagePath,
		Prompt:    surveyPrompt,
		Schema:    llm.BuildLayoutSchema(),
	})
	if err != nil {
		state.AddError(fmt.Sprintf("survey: %v", err))
		return common.NewAppError("SURVEY_FAILED", "layout survey failed", err)
	}

	var plan struct {
		Zones []entity.Zone `json:"zones"`
	}
	if err := json.Unmarshal(llm.CleanJSON([]byte(raw)), &plan); err != nil {
		state.AddError(fmt.Sprintf("survey decode: %v", err))
		return common.NewAppError("SURVEY_MALFORMED", "layout survey returned malformed JSON", err)
	}

	// At most one primary table; drop extra table zones, keep the first.
	// Unknown zone types are the model freelancing and are dropped too.
	seenTable := false
	zones := make([]entity.Zone, 0, len(plan.Zones))
	for _, z := range plan.Zones {
		if !constants.KnownZoneType(string(z.Type)) {
			p.Logger.Warn("pipeline.survey.unknown_zone", "run_id", state.RunID, "type", z.Type)
			continue
		}
		if z.IsTable() {
			if seenTable {
				p.Logger.Warn("pipeline.survey.extra_table_dropped", "run_id", state.RunID, "zone_id", z.ID)
				continue
			}
			seenTable = true
		}
		zones = append(zones, z)
	}

	if len(zones) == 0 {
		return common.NewAppError("SURVEY_EMPTY", "no usable zones proposed", common.ErrNoZones)
	}

	state.ExtractionPlan = zones
	p.Logger.Info("pipeline.survey.ok",
		"run_id", state.RunID,
		"zones", len(zones),
		"has_table", seenTable,
	)
	return nil
}
