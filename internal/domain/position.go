package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a trading position belonging to a campaign.
// The campaign state manager is the sole writer of mutable position state;
// every other component works on read-only snapshots.
type Position struct {
	ID            int64           // Unique identifier (assigned by the repository)
	CampaignID    string          // Owning campaign
	Symbol        string          // Trading symbol (e.g., "AAPL")
	Side          Side            // LONG or SHORT
	Quantity      decimal.Decimal // Size of the position, always > 0
	EntryPrice    decimal.Decimal // Average entry price
	CurrentPrice  decimal.Decimal // Last seen market price
	StopLoss      decimal.Decimal // Stop-loss price level
	TakeProfit    decimal.Decimal // Take-profit price level
	ExitPrice     decimal.Decimal // Price at which the position was exited (zero if open)
	EntryTime     time.Time       // Timestamp when the position was entered
	ExitTime      time.Time       // Timestamp when the position was exited (zero value if open)
	Status        PositionStatus  // open or closed
	ExitReason    ExitReason      // Why the position was closed (empty while open)
	UnrealizedPNL decimal.Decimal // Mark-to-market P&L while open
	RealizedPNL   decimal.Decimal // Final P&L, set exactly once on close

	// Trailing stop state, owned by the trailing exit strategy
	TrailingStop  decimal.Decimal // Current trailing stop level (zero until armed)
	HighWaterMark decimal.Decimal // Best price seen since the stop was armed
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// MarkPrice computes the unrealized P&L of the position at the given price.
// For SHORT positions profit accrues as price falls.
func (p *Position) MarkPrice(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Side == Short {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity)
}

// PriceChangePct returns the signed move from entry as a fraction of the
// entry price, with the sign inverted for SHORT so that a positive value is
// always a favorable move.
func (p *Position) PriceChangePct(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	change := price.Sub(p.EntryPrice).Div(p.EntryPrice)
	if p.Side == Short {
		change = change.Neg()
	}
	return change
}
