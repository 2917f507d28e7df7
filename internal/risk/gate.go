package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/ports"
)

// Hard execution limits, in percent of account equity. These are code
// constants, not configuration: changing one is a deliberate code change
// and a code review, never a runtime parameter.
var (
	MaxTradeRiskPct      = decimal.NewFromFloat(2.0)
	MaxPortfolioHeatPct  = decimal.NewFromFloat(10.0)
	MaxCampaignRiskPct   = decimal.NewFromFloat(5.0)
	MaxCorrelatedRiskPct = decimal.NewFromFloat(6.0)
)

// PortfolioState is the read-only snapshot the gate evaluates against.
// The gate never mutates it. Campaign and correlated risk are optional:
// nil means the caller has no such exposure to project.
type PortfolioState struct {
	AccountEquity     decimal.Decimal
	HeatPct           decimal.Decimal  // Sum of open-position risk percentages
	CampaignRiskPct   *decimal.Decimal // Current risk committed to the campaign
	CorrelatedRiskPct *decimal.Decimal // Current risk in the same sector
}

// TradeProposal is the order the gate rules on.
type TradeProposal struct {
	Symbol  string
	RiskPct decimal.Decimal // Risk of this trade as a percent of equity
}

// Violation records one exceeded limit.
type Violation struct {
	Limit   string          `json:"limit"`
	Current decimal.Decimal `json:"current"`
	Max     decimal.Decimal `json:"max"`
	Message string          `json:"message"`
}

// PreFlightResult is the gate's verdict: passed iff no limit is violated.
// A blocked order carries the complete violation list, not just the first.
type PreFlightResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations,omitempty"`
}

// Gate is the final, non-overridable risk check before any order reaches a
// broker. It is read-only over its inputs and safe for concurrent use.
type Gate struct {
	logger ports.Logger
}

// NewGate constructs the execution risk gate.
func NewGate(logger ports.Logger) (*Gate, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for execution risk gate")
	}
	return &Gate{logger: logger}, nil
}

// Check evaluates all four limits without short-circuiting, so the caller
// receives every violation in one pass. Boundaries are inclusive on the
// limit: a value exactly at the limit passes.
func (g *Gate) Check(ctx context.Context, proposal TradeProposal, state PortfolioState) PreFlightResult {
	var violations []Violation

	if proposal.RiskPct.Cmp(MaxTradeRiskPct) > 0 {
		violations = append(violations, Violation{
			Limit:   "trade_risk",
			Current: proposal.RiskPct,
			Max:     MaxTradeRiskPct,
			Message: fmt.Sprintf("trade risk %s%% exceeds the %s%% per-trade limit", proposal.RiskPct, MaxTradeRiskPct),
		})
	}

	projectedHeat := state.HeatPct.Add(proposal.RiskPct)
	if projectedHeat.Cmp(MaxPortfolioHeatPct) > 0 {
		violations = append(violations, Violation{
			Limit:   "portfolio_heat",
			Current: projectedHeat,
			Max:     MaxPortfolioHeatPct,
			Message: fmt.Sprintf("projected portfolio heat %s%% exceeds the %s%% limit", projectedHeat, MaxPortfolioHeatPct),
		})
	}

	if state.CampaignRiskPct != nil {
		projected := state.CampaignRiskPct.Add(proposal.RiskPct)
		if projected.Cmp(MaxCampaignRiskPct) > 0 {
			violations = append(violations, Violation{
				Limit:   "campaign_risk",
				Current: projected,
				Max:     MaxCampaignRiskPct,
				Message: fmt.Sprintf("projected campaign risk %s%% exceeds the %s%% limit", projected, MaxCampaignRiskPct),
			})
		}
	}

	if state.CorrelatedRiskPct != nil {
		projected := state.CorrelatedRiskPct.Add(proposal.RiskPct)
		if projected.Cmp(MaxCorrelatedRiskPct) > 0 {
			violations = append(violations, Violation{
				Limit:   "correlated_risk",
				Current: projected,
				Max:     MaxCorrelatedRiskPct,
				Message: fmt.Sprintf("projected correlated risk %s%% exceeds the %s%% limit", projected, MaxCorrelatedRiskPct),
			})
		}
	}

	if len(violations) > 0 {
		g.logger.Warn(ctx, "Order blocked by execution risk gate", map[string]interface{}{
			"symbol":     proposal.Symbol,
			"violations": len(violations),
		})
	}
	return PreFlightResult{Passed: len(violations) == 0, Violations: violations}
}
