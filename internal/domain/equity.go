package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one sample of the portfolio equity curve. The curve is
// append-only, one point per processed bar, with non-decreasing timestamps.
type EquityPoint struct {
	Timestamp      time.Time       `json:"timestamp"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
}

// ExitSignal instructs the state manager to close a position. It is produced
// by the bar processor or an exit strategy and consumed exactly once.
type ExitSignal struct {
	Symbol string          `json:"symbol"`
	Reason ExitReason      `json:"reason"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"` // Zero value means "now" at consumption
}
