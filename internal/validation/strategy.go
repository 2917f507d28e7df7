package validation

import (
	"context"
	"fmt"

	"wyckoffEngine/internal/domain"
)

// prerequisites lists the pattern types that must already have printed in
// the campaign before each type becomes tradeable. Any one of the listed
// types satisfies the requirement.
var prerequisites = map[domain.PatternType][]domain.PatternType{
	domain.PatternSOS: {domain.PatternSpring, domain.PatternLPS},
	domain.PatternLPS: {domain.PatternSOS},
}

// StrategyValidator enforces the sequential methodology: structural events
// must appear in Wyckoff order within a campaign. Without campaign history
// the check degrades to a WARN so a fresh campaign's first pattern is not
// rejected for lacking ancestors it cannot have.
type StrategyValidator struct{}

func (StrategyValidator) ValidatorID() string { return "sequence-prerequisites" }
func (StrategyValidator) StageName() string   { return "strategy" }

func (v StrategyValidator) Validate(ctx context.Context, vc *Context) StageResult {
	if vc.Pattern == nil {
		return fail(v, "no pattern candidate in context", nil)
	}
	required, ok := prerequisites[vc.Pattern.Type]
	if !ok {
		return pass(v, map[string]interface{}{"rule": "none"})
	}
	if vc.History == nil {
		return warn(v, fmt.Sprintf("no campaign history; %s prerequisite not evaluated", vc.Pattern.Type), nil)
	}

	for _, seen := range vc.History {
		for _, want := range required {
			if seen == want {
				return pass(v, map[string]interface{}{"satisfied_by": string(seen)})
			}
		}
	}
	return fail(v, fmt.Sprintf("%s requires a prior %v in the campaign, none seen", vc.Pattern.Type, required),
		map[string]interface{}{"history_len": len(vc.History)})
}
