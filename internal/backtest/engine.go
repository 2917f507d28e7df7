package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/analytics"
	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
)

// EngineConfig wires the collaborators of a simulation run.
type EngineConfig struct {
	Detector ports.PatternDetector
	Costs    CostModel
	Registry *Registry // Optional; required only when Config.ExitStrategy is set
	Bias     BiasConfig
	Logger   ports.Logger
}

// Engine replays the live decision rules bar by bar against recorded
// history. All decisions use only data available at decision time: a
// pattern detected on bar i fills at the open of bar i+1.
type Engine struct {
	detector ports.PatternDetector
	costs    CostModel
	registry *Registry
	bias     *BiasDetector
	logger   ports.Logger
}

// NewEngine validates the wiring and constructs an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for backtest engine")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("pattern detector is required for backtest engine")
	}
	if cfg.Costs == nil {
		return nil, fmt.Errorf("cost model is required for backtest engine")
	}
	bias, err := NewBiasDetector(cfg.Bias)
	if err != nil {
		return nil, fmt.Errorf("invalid bias detector config: %w", err)
	}
	return &Engine{
		detector: cfg.Detector,
		costs:    cfg.Costs,
		registry: cfg.Registry,
		bias:     bias,
		logger:   cfg.Logger,
	}, nil
}

// Run simulates the full bar series under the given configuration and
// returns the immutable result. Bars must be chronologically ordered; the
// engine re-verifies and rejects out-of-order input.
func (e *Engine) Run(ctx context.Context, bars []*domain.Bar, cfg Config) (*Result, error) {
	started := time.Now()

	if len(bars) < 2 {
		return nil, fmt.Errorf("not enough bars to simulate: %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("bars out of order at index %d: %s then %s",
				i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
	if cfg.InitialFunds.Sign() <= 0 {
		return nil, fmt.Errorf("initial funds must be positive, got %s", cfg.InitialFunds)
	}
	if cfg.PositionSize.Sign() <= 0 {
		return nil, fmt.Errorf("position size must be positive, got %s", cfg.PositionSize)
	}

	processor, err := NewBarProcessor(ProcessorConfig{
		StopLossPct:   cfg.StopLossPct,
		TakeProfitPct: cfg.TakeProfitPct,
	}, e.logger)
	if err != nil {
		return nil, err
	}

	var exitStrategy ExitStrategy
	if cfg.ExitStrategy != "" {
		if e.registry == nil {
			return nil, fmt.Errorf("exit strategy %q requested but no registry configured", cfg.ExitStrategy)
		}
		exitStrategy, err = e.registry.Get(cfg.ExitStrategy)
		if err != nil {
			return nil, err
		}
	}

	var (
		cash      = cfg.InitialFunds
		position  *domain.Position
		entryBar  int
		entryCost costLeg
		curve     = make([]domain.EquityPoint, 0, len(bars))
		trades    []*domain.Trade
	)

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var positions []*domain.Position
		if position != nil {
			positions = append(positions, position)
		}

		point, exits := processor.ProcessBar(ctx, bar, positions, cash)

		var exit *domain.ExitSignal
		if position != nil && i > entryBar {
			// Processor stop/target signals take precedence over the
			// pluggable strategy: a bar satisfying both is a stop.
			if len(exits) > 0 {
				exit = exits[0]
			} else if exitStrategy != nil {
				if sig, ok := exitStrategy.CheckExit(ctx, position, bars, i); ok {
					exit = sig
				}
			}
		}

		if exit != nil {
			trade, proceeds := e.closePosition(position, exit, bars, i, entryCost)
			trades = append(trades, trade)
			cash = cash.Add(proceeds)
			position = nil

			// Re-mark equity with the position gone.
			point, _ = processor.ProcessBar(ctx, bar, nil, cash)
		}
		curve = append(curve, point)

		// Entry decision on this bar's close, filled at the next open.
		if position == nil && i+1 < len(bars) {
			pattern, err := e.detector.Detect(ctx, bars, i)
			if err != nil {
				return nil, fmt.Errorf("pattern detection failed at bar %d: %w", i, err)
			}
			if pattern == nil {
				continue
			}
			if pattern.Type == domain.PatternUTAD {
				// The simulation trades the accumulation (long) side only;
				// distribution candidates route to the live short path.
				e.logger.Debug(ctx, "Skipping distribution pattern in simulation",
					map[string]interface{}{"type": pattern.Type, "bar": i})
				continue
			}

			pos, leg, spent, err := e.openPosition(cfg, pattern, bars, i+1)
			if err != nil {
				return nil, err
			}
			if spent.Cmp(cash) > 0 {
				e.logger.Warn(ctx, "Insufficient funds for entry", map[string]interface{}{
					"required": spent.String(), "cash": cash.String(), "bar": i,
				})
				continue
			}
			cash = cash.Sub(spent)
			position = pos
			entryBar = i + 1
			entryCost = leg
		}
	}

	maxDD := analytics.MaxDrawdown(curve)
	metrics := analytics.AnalyzeTrades(trades, cfg.InitialFunds)
	metrics.MaxDrawdown = maxDD.Drawdown
	metrics.SharpeRatio = analytics.SharpeRatio(curve, cfg.Timeframe)

	biasFree, violations := e.bias.CheckTrades(trades, bars)

	if trades == nil {
		trades = []*domain.Trade{}
	}
	return &Result{
		Config:           cfg,
		EquityCurve:      curve,
		Trades:           trades,
		Metrics:          metrics,
		MaxDrawdown:      maxDD,
		BiasFree:         biasFree,
		BiasViolations:   violations,
		ExecutionSeconds: time.Since(started).Seconds(),
	}, nil
}

// costLeg captures the costs paid on one fill.
type costLeg struct {
	commission decimal.Decimal
	slippage   decimal.Decimal // Absolute money lost to slippage
}

// openPosition fills a long entry at the open of bars[fillIndex] with
// slippage and commission applied.
func (e *Engine) openPosition(cfg Config, pattern *domain.Pattern, bars []*domain.Bar, fillIndex int) (*domain.Position, costLeg, decimal.Decimal, error) {
	bar := bars[fillIndex]
	order, err := domain.NewOrder(cfg.Symbol, domain.Long, cfg.PositionSize)
	if err != nil {
		return nil, costLeg{}, decimal.Zero, err
	}

	slip := e.costs.Slippage(order, bars, fillIndex)
	commission := e.costs.Commission(order)
	fill := bar.Open.Add(slip.Div(order.Quantity))

	pos := &domain.Position{
		Symbol:       cfg.Symbol,
		Side:         domain.Long,
		Quantity:     order.Quantity,
		EntryPrice:   fill,
		CurrentPrice: fill,
		EntryTime:    bar.Timestamp,
		Status:       domain.StatusOpen,
	}
	spent := order.Quantity.Mul(fill).Add(commission)
	return pos, costLeg{commission: commission, slippage: slip.Abs()}, spent, nil
}

// closePosition fills the exit at the signal price with sell-side costs and
// builds the completed trade record. Returns the trade and the cash
// proceeds of the close.
func (e *Engine) closePosition(pos *domain.Position, exit *domain.ExitSignal, bars []*domain.Bar, index int, entry costLeg) (*domain.Trade, decimal.Decimal) {
	order := &domain.Order{Symbol: pos.Symbol, Side: domain.Short, Quantity: pos.Quantity}
	slip := e.costs.Slippage(order, bars, index)
	commission := e.costs.Commission(order)

	// Sell slippage is negative: it reduces proceeds.
	fill := exit.Price.Add(slip.Div(pos.Quantity))
	proceeds := pos.Quantity.Mul(fill).Sub(commission)

	pos.Status = domain.StatusClosed
	pos.ExitPrice = fill
	pos.ExitTime = exit.Time
	pos.ExitReason = exit.Reason

	totalCommission := entry.commission.Add(commission)
	totalSlippage := entry.slippage.Add(slip.Abs())
	pnl := pos.Quantity.Mul(fill.Sub(pos.EntryPrice)).Sub(totalCommission)
	pos.RealizedPNL = pnl

	return &domain.Trade{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		Commission: totalCommission,
		Slippage:   totalSlippage,
		PNL:        pnl,
		EntryTime:  pos.EntryTime,
		ExitTime:   exit.Time,
		ExitReason: exit.Reason,
	}, proceeds
}
