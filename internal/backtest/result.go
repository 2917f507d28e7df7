package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/analytics"
	"wyckoffEngine/internal/domain"
)

// Config is the snapshot of simulation parameters embedded in a Result.
type Config struct {
	Symbol        string           `json:"symbol"`
	Timeframe     domain.Timeframe `json:"timeframe"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       time.Time        `json:"end_time"`
	InitialFunds  decimal.Decimal  `json:"initial_funds"`
	PositionSize  decimal.Decimal  `json:"position_size"` // Quantity per entry
	StopLossPct   decimal.Decimal  `json:"stop_loss_pct"`
	TakeProfitPct decimal.Decimal  `json:"take_profit_pct"`
	ExitStrategy  string           `json:"exit_strategy,omitempty"` // Optional registry strategy name
}

// Result is the immutable outcome of one simulation run. It round-trips
// losslessly through JSON: decimals serialize as strings, so no value
// drifts through a float representation.
type Result struct {
	Config           Config                        `json:"config"`
	EquityCurve      []domain.EquityPoint          `json:"equity_curve"`
	Trades           []*domain.Trade               `json:"trades"`
	Metrics          *analytics.PerformanceMetrics `json:"metrics"`
	MaxDrawdown      analytics.MaxDrawdownResult   `json:"max_drawdown"`
	BiasFree         bool                          `json:"bias_free"`
	BiasViolations   []BiasViolation               `json:"bias_violations,omitempty"`
	ExecutionSeconds float64                       `json:"execution_seconds"`
}
