package backtest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
)

// ProcessorConfig holds the exit thresholds applied on every bar.
// Both are fractions strictly inside (0, 1].
type ProcessorConfig struct {
	StopLossPct   decimal.Decimal // Adverse move that fires a stop, e.g., 0.02
	TakeProfitPct decimal.Decimal // Favorable move that takes profit, e.g., 0.04
}

// BarProcessor applies one bar to the open position set: updates marks,
// evaluates exit conditions, and emits one equity point per bar.
type BarProcessor struct {
	cfg    ProcessorConfig
	logger ports.Logger
}

// NewBarProcessor validates the thresholds and constructs a processor.
// Out-of-range thresholds are a configuration error, never silently clamped.
func NewBarProcessor(cfg ProcessorConfig, logger ports.Logger) (*BarProcessor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for bar processor")
	}
	one := decimal.NewFromInt(1)
	if cfg.StopLossPct.Sign() <= 0 || cfg.StopLossPct.Cmp(one) > 0 {
		return nil, fmt.Errorf("stop loss pct must be within (0, 1], got %s", cfg.StopLossPct)
	}
	if cfg.TakeProfitPct.Sign() <= 0 || cfg.TakeProfitPct.Cmp(one) > 0 {
		return nil, fmt.Errorf("take profit pct must be within (0, 1], got %s", cfg.TakeProfitPct)
	}
	return &BarProcessor{cfg: cfg, logger: logger}, nil
}

// ProcessBar updates every open position matching the bar's symbol, checks
// exit conditions, and returns the equity point for this bar plus any exit
// signals. The stop-loss check runs before the take-profit check so a bar
// satisfying both is treated conservatively as a stop.
//
// Bars must arrive in strictly increasing timestamp order per symbol.
func (p *BarProcessor) ProcessBar(ctx context.Context, bar *domain.Bar, positions []*domain.Position, cash decimal.Decimal) (domain.EquityPoint, []*domain.ExitSignal) {
	var exits []*domain.ExitSignal

	for _, pos := range positions {
		if !pos.IsOpen() || pos.Symbol != bar.Symbol {
			continue
		}
		pos.CurrentPrice = bar.Close
		pos.UnrealizedPNL = pos.MarkPrice(bar.Close)

		// PriceChangePct is sign-normalized: positive is favorable for
		// either side, so SHORT losses (price rising) come back negative.
		change := pos.PriceChangePct(bar.Close)

		switch {
		case change.Neg().Cmp(p.cfg.StopLossPct) >= 0:
			exits = append(exits, &domain.ExitSignal{
				Symbol: pos.Symbol,
				Reason: domain.ExitReasonStopLoss,
				Price:  bar.Close,
				Time:   bar.Timestamp,
			})
			p.logger.Debug(ctx, "Stop loss fired", map[string]interface{}{
				"positionID": pos.ID, "symbol": pos.Symbol, "change": change.String(),
			})
		case change.Cmp(p.cfg.TakeProfitPct) >= 0:
			exits = append(exits, &domain.ExitSignal{
				Symbol: pos.Symbol,
				Reason: domain.ExitReasonTakeProfit,
				Price:  bar.Close,
				Time:   bar.Timestamp,
			})
			p.logger.Debug(ctx, "Take profit fired", map[string]interface{}{
				"positionID": pos.ID, "symbol": pos.Symbol, "change": change.String(),
			})
		}
	}

	positionsValue := decimal.Zero
	for _, pos := range positions {
		if pos.IsOpen() {
			positionsValue = positionsValue.Add(pos.Quantity.Mul(pos.CurrentPrice))
		}
	}

	point := domain.EquityPoint{
		Timestamp:      bar.Timestamp,
		PortfolioValue: cash.Add(positionsValue),
		Cash:           cash,
		PositionsValue: positionsValue,
	}
	return point, exits
}
