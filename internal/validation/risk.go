package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// maxStageTradeRiskPct mirrors the execution gate's per-trade ceiling so an
// oversized proposal is caught here, before sizing work happens downstream.
var maxStageTradeRiskPct = decimal.NewFromFloat(2.0)

// RiskValidator checks sizing feasibility: the stop structure must leave a
// positive stop distance and the proposed risk must fit the per-trade
// ceiling. Absent portfolio context produces a WARN; the execution gate
// still enforces the hard limits downstream.
type RiskValidator struct{}

func (RiskValidator) ValidatorID() string { return "sizing-feasibility" }
func (RiskValidator) StageName() string   { return "risk" }

func (v RiskValidator) Validate(ctx context.Context, vc *Context) StageResult {
	if vc.Pattern == nil {
		return fail(v, "no pattern candidate in context", nil)
	}
	if vc.Portfolio == nil {
		return warn(v, "no portfolio context; sizing feasibility not evaluated", nil)
	}
	if vc.Range == nil {
		return fail(v, "no trading range context for stop placement", nil)
	}

	stopDistance := stopDistanceFor(vc.Pattern, vc.Range)
	if stopDistance.Sign() <= 0 {
		return fail(v, fmt.Sprintf("stop distance %s is not positive for %s at %s",
			stopDistance, vc.Pattern.Type, vc.Pattern.Price), nil)
	}

	riskPct := vc.Portfolio.RiskPerTradePct
	md := map[string]interface{}{
		"stop_distance": stopDistance.String(),
		"risk_pct":      riskPct.String(),
	}
	if riskPct.Sign() <= 0 {
		return fail(v, fmt.Sprintf("proposed trade risk %s%% is not positive", riskPct), md)
	}
	if riskPct.Cmp(maxStageTradeRiskPct) > 0 {
		return fail(v, fmt.Sprintf("proposed trade risk %s%% exceeds the %s%% per-trade ceiling",
			riskPct, maxStageTradeRiskPct), md)
	}

	riskAmount := vc.Portfolio.AccountEquity.Mul(riskPct).Div(decimal.NewFromInt(100))
	quantity := riskAmount.Div(stopDistance)
	md["quantity"] = quantity.String()
	if quantity.Cmp(decimal.NewFromInt(1)) < 0 {
		return warn(v, fmt.Sprintf("sized quantity %s rounds below one share", quantity), md)
	}
	return pass(v, md)
}

// stopDistanceFor measures the distance to the structural stop boundary:
// the Creek below accumulation entries, the Ice a UTAD upthrust prints
// above.
func stopDistanceFor(pattern *domain.Pattern, tr *domain.TradingRange) decimal.Decimal {
	if pattern.Type == domain.PatternUTAD {
		return pattern.Price.Sub(tr.Ice)
	}
	return pattern.Price.Sub(tr.Creek)
}
