package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// volumeRule bounds the pattern-bar volume ratio for one pattern type.
// A zero bound is not enforced.
type volumeRule struct {
	maxRatio decimal.Decimal
	minRatio decimal.Decimal
}

// VolumeRules is the pattern-specific volume rule table. Springs must print
// on dried-up supply, SOS/UTAD on expanding effort, LPS on quiet pullback
// volume. Pattern types without an entry pass through.
var VolumeRules = map[domain.PatternType]volumeRule{
	domain.PatternSpring: {maxRatio: decimal.NewFromFloat(0.7)},
	domain.PatternSOS:    {minRatio: decimal.NewFromFloat(1.5)},
	domain.PatternUTAD:   {minRatio: decimal.NewFromFloat(1.2)},
	domain.PatternLPS:    {maxRatio: decimal.NewFromFloat(1.0)},
}

// LPS absorption exception: when the close sits in the upper part of the
// bar's range, demand is absorbing supply and a higher volume ceiling is
// tolerated. Domain-tuned constants, kept as-is pending expert review.
var (
	absorptionCloseFraction = decimal.NewFromFloat(0.7)
	absorptionMaxRatio      = decimal.NewFromFloat(1.3)
)

// VolumeValidator enforces the pattern-specific volume rule table.
type VolumeValidator struct{}

func (VolumeValidator) ValidatorID() string { return "volume-rule-table" }
func (VolumeValidator) StageName() string   { return "volume" }

func (v VolumeValidator) Validate(ctx context.Context, vc *Context) StageResult {
	if vc.Pattern == nil {
		return fail(v, "no pattern candidate in context", nil)
	}
	if vc.Volume == nil || vc.Volume.BaselineBars == 0 {
		// Cannot validate without a reference; reject rather than guess.
		return fail(v, "no volume baseline available", nil)
	}

	rule, ok := VolumeRules[vc.Pattern.Type]
	if !ok {
		return pass(v, map[string]interface{}{"rule": "none"})
	}

	ratio := vc.Volume.Ratio
	md := map[string]interface{}{"ratio": ratio.String()}

	if !rule.minRatio.IsZero() && ratio.Cmp(rule.minRatio) <= 0 {
		return fail(v, fmt.Sprintf("%s requires volume ratio > %s, got %s",
			vc.Pattern.Type, rule.minRatio, ratio), md)
	}
	if !rule.maxRatio.IsZero() && ratio.Cmp(rule.maxRatio) >= 0 {
		if vc.Pattern.Type == domain.PatternLPS && isAbsorption(vc.Volume) {
			md["absorption"] = true
			return pass(v, md)
		}
		return fail(v, fmt.Sprintf("%s requires volume ratio < %s, got %s",
			vc.Pattern.Type, rule.maxRatio, ratio), md)
	}
	return pass(v, md)
}

// isAbsorption reports whether an over-limit LPS volume qualifies for the
// absorption exception: the close holds the top of the range and the ratio
// stays under the raised ceiling.
func isAbsorption(vol *VolumeAnalysis) bool {
	return vol.ClosePosition.Cmp(absorptionCloseFraction) >= 0 &&
		vol.Ratio.Cmp(absorptionMaxRatio) < 0
}
