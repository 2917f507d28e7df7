package validation

import (
	"context"
	"fmt"

	"wyckoffEngine/internal/domain"
)

// AllowedPhases maps each pattern type to the Wyckoff phases in which it is
// structurally valid. Types without an entry pass through.
var AllowedPhases = map[domain.PatternType][]domain.WyckoffPhase{
	domain.PatternSpring: {domain.PhaseC},
	domain.PatternSOS:    {domain.PhaseD, domain.PhaseE},
	domain.PatternLPS:    {domain.PhaseD, domain.PhaseE},
	domain.PatternUTAD:   {domain.PhaseD},
}

// PhaseValidator checks the pattern against the phase table. Absent phase
// information produces a WARN, not a FAIL: phase detection is an optional
// upstream capability and its absence is visible in the audit trail.
type PhaseValidator struct{}

func (PhaseValidator) ValidatorID() string { return "phase-rule-table" }
func (PhaseValidator) StageName() string   { return "phase" }

func (v PhaseValidator) Validate(ctx context.Context, vc *Context) StageResult {
	if vc.Pattern == nil {
		return fail(v, "no pattern candidate in context", nil)
	}
	allowed, ok := AllowedPhases[vc.Pattern.Type]
	if !ok {
		return pass(v, map[string]interface{}{"rule": "none"})
	}

	phase := vc.Phase
	if phase == nil {
		phase = vc.Pattern.Phase
	}
	if phase == nil {
		return warn(v, fmt.Sprintf("no phase information for %s candidate; phase rule not evaluated", vc.Pattern.Type), nil)
	}

	for _, p := range allowed {
		if *phase == p {
			return pass(v, map[string]interface{}{"phase": string(p)})
		}
	}
	return fail(v, fmt.Sprintf("%s is not valid in phase %s (allowed: %v)",
		vc.Pattern.Type, *phase, allowed), map[string]interface{}{"phase": string(*phase)})
}
