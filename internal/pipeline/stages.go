package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/risk"
	"wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/validation"
)

// DetectionStage scans the input bars with a validated detector and stores
// the accepted signal, if any. A bar window with no signal is a normal
// outcome, not a stage error.
type DetectionStage struct {
	Detector *signal.ValidatedDetector
}

func (s *DetectionStage) Name() string { return "detection" }

func (s *DetectionStage) Run(ctx context.Context, input *Input, out *Context) error {
	if len(input.Bars) == 0 {
		return fmt.Errorf("detection stage requires at least one bar")
	}
	sig, err := s.Detector.Detect(ctx, input.Bars, len(input.Bars)-1)
	if err != nil {
		return err
	}
	if sig != nil {
		out.Signal = sig
		out.Patterns = append(out.Patterns, sig.Pattern)
	}
	return nil
}

// ContextBuilder supplies the campaign-level inputs the validation chain
// needs beyond the bar window: trading range, pattern history, portfolio.
type ContextBuilder func(ctx context.Context, input *Input, sig *signal.Signal) (*validation.Context, error)

// ValidationStage runs the five-stage chain against the detected signal.
// With no signal in the shared context, the stage is a no-op.
type ValidationStage struct {
	Chain *validation.Chain
	Build ContextBuilder
}

func (s *ValidationStage) Name() string { return "validation" }

func (s *ValidationStage) Run(ctx context.Context, input *Input, out *Context) error {
	if out.Signal == nil {
		return nil
	}
	vc, err := s.Build(ctx, input, out.Signal)
	if err != nil {
		return fmt.Errorf("failed to build validation context: %w", err)
	}
	out.Chain = s.Chain.Run(ctx, vc)
	return nil
}

// StateProvider snapshots the portfolio exposure the gate rules against.
type StateProvider func(ctx context.Context, symbol string) (risk.PortfolioState, error)

// GateStage runs the execution risk gate over a validated signal. It only
// fires when the chain passed: a rejected candidate never reaches the gate.
type GateStage struct {
	Gate    *risk.Gate
	State   StateProvider
	RiskPct decimal.Decimal
}

func (s *GateStage) Name() string { return "gate" }

func (s *GateStage) Run(ctx context.Context, input *Input, out *Context) error {
	if out.Signal == nil || out.Chain == nil || !out.Chain.IsValid {
		return nil
	}
	state, err := s.State(ctx, input.Symbol)
	if err != nil {
		return fmt.Errorf("failed to snapshot portfolio state: %w", err)
	}
	result := s.Gate.Check(ctx, risk.TradeProposal{Symbol: input.Symbol, RiskPct: s.RiskPct}, state)
	out.PreFlight = &result
	return nil
}
