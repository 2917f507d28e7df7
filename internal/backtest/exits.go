package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// ExitStrategy decides whether an open position should be closed on the
// current bar. Strategies are pure over their inputs apart from the trailing
// state they keep on the position itself.
type ExitStrategy interface {
	Name() string
	// CheckExit returns the exit signal and true when the strategy wants
	// out; nil and false otherwise.
	CheckExit(ctx context.Context, pos *domain.Position, bars []*domain.Bar, index int) (*domain.ExitSignal, bool)
}

// Registry is a name -> strategy lookup. Registration is explicit and
// duplicate names are rejected.
type Registry struct {
	strategies map[string]ExitStrategy
}

// NewRegistry creates an empty exit strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]ExitStrategy)}
}

// Register adds a strategy under the given name.
func (r *Registry) Register(name string, s ExitStrategy) error {
	if s == nil {
		return fmt.Errorf("cannot register nil exit strategy %q", name)
	}
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("exit strategy %q is already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Get looks up a strategy by name. An unknown name is an error carrying the
// list of valid names, never a silent default.
func (r *Registry) Get(name string) (ExitStrategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown exit strategy %q, valid strategies: %s", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry builds a registry holding the stock strategies under
// their standard names.
func DefaultRegistry() (*Registry, error) {
	trailing, err := NewTrailingStopExit(TrailingStopConfig{
		ActivationPct: decimal.NewFromFloat(0.01),
		DistancePct:   decimal.NewFromFloat(0.005),
	})
	if err != nil {
		return nil, err
	}
	target, err := NewFixedTargetExit(decimal.NewFromFloat(0.04))
	if err != nil {
		return nil, err
	}
	timed, err := NewTimeBasedExit(10 * 24 * time.Hour)
	if err != nil {
		return nil, err
	}
	consolidation, err := NewConsolidationExit(12)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for _, s := range []ExitStrategy{trailing, target, timed, consolidation} {
		if err := r.Register(s.Name(), s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// --- Trailing stop ---

// TrailingStopConfig parameterizes the trailing stop exit.
type TrailingStopConfig struct {
	ActivationPct decimal.Decimal // Favorable move required before the stop arms, e.g., 0.01
	DistancePct   decimal.Decimal // Stop distance from the high-water mark, e.g., 0.005
}

// TrailingStopExit arms a stop once the position is sufficiently in profit
// and then ratchets it behind the best price seen.
type TrailingStopExit struct {
	cfg TrailingStopConfig
}

// NewTrailingStopExit validates and constructs the trailing stop strategy.
func NewTrailingStopExit(cfg TrailingStopConfig) (*TrailingStopExit, error) {
	if cfg.ActivationPct.Sign() < 0 {
		return nil, fmt.Errorf("trailing activation pct cannot be negative, got %s", cfg.ActivationPct)
	}
	if cfg.DistancePct.Sign() <= 0 {
		return nil, fmt.Errorf("trailing distance pct must be positive, got %s", cfg.DistancePct)
	}
	return &TrailingStopExit{cfg: cfg}, nil
}

func (s *TrailingStopExit) Name() string { return "trailing_stop" }

func (s *TrailingStopExit) CheckExit(ctx context.Context, pos *domain.Position, bars []*domain.Bar, index int) (*domain.ExitSignal, bool) {
	bar := bars[index]
	price := bar.Close

	if pos.TrailingStop.IsZero() {
		if pos.PriceChangePct(price).Cmp(s.cfg.ActivationPct) < 0 {
			return nil, false
		}
		pos.HighWaterMark = price
		pos.TrailingStop = s.stopFor(pos.Side, price)
		return nil, false
	}

	// Ratchet: the stop only ever tightens.
	if favorable(pos.Side, price, pos.HighWaterMark) {
		pos.HighWaterMark = price
		pos.TrailingStop = s.stopFor(pos.Side, price)
		return nil, false
	}

	hit := false
	if pos.Side == domain.Long {
		hit = price.Cmp(pos.TrailingStop) <= 0
	} else {
		hit = price.Cmp(pos.TrailingStop) >= 0
	}
	if !hit {
		return nil, false
	}
	return &domain.ExitSignal{
		Symbol: pos.Symbol,
		Reason: domain.ExitReasonTrailingStop,
		Price:  price,
		Time:   bar.Timestamp,
	}, true
}

func (s *TrailingStopExit) stopFor(side domain.Side, price decimal.Decimal) decimal.Decimal {
	dist := price.Mul(s.cfg.DistancePct)
	if side == domain.Long {
		return price.Sub(dist)
	}
	return price.Add(dist)
}

func favorable(side domain.Side, price, mark decimal.Decimal) bool {
	if side == domain.Long {
		return price.Cmp(mark) > 0
	}
	return price.Cmp(mark) < 0
}

// --- Fixed target ---

// FixedTargetExit closes the position once the favorable move from entry
// reaches the target fraction.
type FixedTargetExit struct {
	targetPct decimal.Decimal
}

// NewFixedTargetExit validates and constructs the fixed target strategy.
func NewFixedTargetExit(targetPct decimal.Decimal) (*FixedTargetExit, error) {
	if targetPct.Sign() <= 0 {
		return nil, fmt.Errorf("target pct must be positive, got %s", targetPct)
	}
	return &FixedTargetExit{targetPct: targetPct}, nil
}

func (s *FixedTargetExit) Name() string { return "fixed_target" }

func (s *FixedTargetExit) CheckExit(ctx context.Context, pos *domain.Position, bars []*domain.Bar, index int) (*domain.ExitSignal, bool) {
	bar := bars[index]
	if pos.PriceChangePct(bar.Close).Cmp(s.targetPct) < 0 {
		return nil, false
	}
	return &domain.ExitSignal{
		Symbol: pos.Symbol,
		Reason: domain.ExitReasonTarget,
		Price:  bar.Close,
		Time:   bar.Timestamp,
	}, true
}

// --- Time based ---

// TimeBasedExit force-closes a position held longer than the maximum
// holding period, regardless of P&L.
type TimeBasedExit struct {
	maxHolding time.Duration
}

// NewTimeBasedExit validates and constructs the time-based strategy.
func NewTimeBasedExit(maxHolding time.Duration) (*TimeBasedExit, error) {
	if maxHolding <= 0 {
		return nil, fmt.Errorf("max holding duration must be positive, got %s", maxHolding)
	}
	return &TimeBasedExit{maxHolding: maxHolding}, nil
}

func (s *TimeBasedExit) Name() string { return "time_limit" }

func (s *TimeBasedExit) CheckExit(ctx context.Context, pos *domain.Position, bars []*domain.Bar, index int) (*domain.ExitSignal, bool) {
	bar := bars[index]
	if bar.Timestamp.Sub(pos.EntryTime) < s.maxHolding {
		return nil, false
	}
	return &domain.ExitSignal{
		Symbol: pos.Symbol,
		Reason: domain.ExitReasonTimeLimit,
		Price:  bar.Close,
		Time:   bar.Timestamp,
	}, true
}

// --- Consolidation ---

// DetectConsolidation reports whether price has been moving sideways over
// the trailing window ending at index: the close-to-close range is below
// 1.5x the average bar range.
func DetectConsolidation(bars []*domain.Bar, index, periods int) bool {
	if periods < 2 || index+1 < periods {
		return false
	}
	window := bars[index+1-periods : index+1]

	high := window[0].Close
	low := window[0].Close
	avgRange := decimal.Zero
	for _, b := range window {
		if b.Close.Cmp(high) > 0 {
			high = b.Close
		}
		if b.Close.Cmp(low) < 0 {
			low = b.Close
		}
		avgRange = avgRange.Add(b.Range())
	}
	avgRange = avgRange.Div(decimal.NewFromInt(int64(periods)))

	limit := avgRange.Mul(decimal.NewFromFloat(1.5))
	return high.Sub(low).Cmp(limit) < 0
}

// ConsolidationExit closes a profitable position when price stops trending.
// Losing positions are left to the stop loss.
type ConsolidationExit struct {
	periods int
}

// NewConsolidationExit validates and constructs the consolidation strategy.
func NewConsolidationExit(periods int) (*ConsolidationExit, error) {
	if periods < 2 {
		return nil, fmt.Errorf("consolidation periods must be at least 2, got %d", periods)
	}
	return &ConsolidationExit{periods: periods}, nil
}

func (s *ConsolidationExit) Name() string { return "consolidation" }

func (s *ConsolidationExit) CheckExit(ctx context.Context, pos *domain.Position, bars []*domain.Bar, index int) (*domain.ExitSignal, bool) {
	bar := bars[index]
	if pos.PriceChangePct(bar.Close).Sign() <= 0 {
		return nil, false
	}
	if !DetectConsolidation(bars, index, s.periods) {
		return nil, false
	}
	return &domain.ExitSignal{
		Symbol: pos.Symbol,
		Reason: domain.ExitReasonStrategy,
		Price:  bar.Close,
		Time:   bar.Timestamp,
	}, true
}
