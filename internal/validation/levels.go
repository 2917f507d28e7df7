package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Level-structure thresholds. The 80-200% band around the cause-implied
// target is domain-tuned; kept as constants pending expert review.
var (
	minLevelStrength  = decimal.NewFromInt(60)
	minRangeTargetPct = decimal.NewFromFloat(0.8)
	maxRangeTargetPct = decimal.NewFromFloat(2.0)
	minRangeWidthPct  = decimal.NewFromFloat(0.03) // Of the Creek price
)

// LevelsValidator checks the Creek/Ice/Jump structure backing a candidate:
// boundary strength, ordering, realized range versus the cause-implied
// target, and minimum range width.
type LevelsValidator struct{}

func (LevelsValidator) ValidatorID() string { return "creek-ice-levels" }
func (LevelsValidator) StageName() string   { return "levels" }

func (v LevelsValidator) Validate(ctx context.Context, vc *Context) StageResult {
	tr := vc.Range
	if tr == nil {
		return fail(v, "no trading range context", nil)
	}

	if tr.CreekStrength.Cmp(minLevelStrength) < 0 {
		return fail(v, fmt.Sprintf("creek strength %s below minimum %s", tr.CreekStrength, minLevelStrength), nil)
	}
	if tr.IceStrength.Cmp(minLevelStrength) < 0 {
		return fail(v, fmt.Sprintf("ice strength %s below minimum %s", tr.IceStrength, minLevelStrength), nil)
	}
	if tr.Ice.Cmp(tr.Creek) <= 0 {
		return fail(v, fmt.Sprintf("ice price %s must exceed creek price %s", tr.Ice, tr.Creek), nil)
	}
	if tr.Creek.Sign() <= 0 {
		return fail(v, fmt.Sprintf("creek price must be positive, got %s", tr.Creek), nil)
	}

	width := tr.Ice.Sub(tr.Creek)
	widthPct := width.Div(tr.Creek)
	md := map[string]interface{}{"range_width_pct": widthPct.String()}
	if widthPct.Cmp(minRangeWidthPct) < 0 {
		return fail(v, fmt.Sprintf("range width %s%% of creek is below the %s%% minimum",
			widthPct.Mul(decimal.NewFromInt(100)), minRangeWidthPct.Mul(decimal.NewFromInt(100))), md)
	}

	// Realized markup versus what the accumulated cause should support.
	target := width.Mul(tr.CauseFactor)
	if target.Sign() <= 0 {
		return fail(v, fmt.Sprintf("cause factor %s implies no target", tr.CauseFactor), md)
	}
	realized := tr.Jump.Sub(tr.Creek)
	ratio := realized.Div(target)
	md["target_ratio"] = ratio.String()

	if ratio.Cmp(maxRangeTargetPct) > 0 {
		return fail(v, fmt.Sprintf("realized range is %s of the cause-implied target: unrealistic", ratio), md)
	}
	if ratio.Cmp(minRangeTargetPct) < 0 {
		return warn(v, fmt.Sprintf("realized range is %s of the cause-implied target: conservative", ratio), md)
	}
	return pass(v, md)
}
