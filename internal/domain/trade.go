package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents an intent to trade, before costs are applied.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"` // Always > 0
}

// NewOrder constructs an Order, rejecting non-positive quantities.
func NewOrder(symbol string, side Side, quantity decimal.Decimal) (*Order, error) {
	if quantity.Sign() <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %s", quantity)
	}
	return &Order{Symbol: symbol, Side: side, Quantity: quantity}, nil
}

// Trade represents a completed round trip: entry to exit, with the costs
// actually paid. Invariant: EntryTime is strictly before ExitTime.
type Trade struct {
	ID         int64           `json:"id"`
	PositionID int64           `json:"position_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"` // Slippage-adjusted fill
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Commission decimal.Decimal `json:"commission"` // Total for both legs
	Slippage   decimal.Decimal `json:"slippage"`   // Total cost attributed to slippage
	PNL        decimal.Decimal `json:"pnl"`        // Net of commission and slippage
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	ExitReason ExitReason      `json:"exit_reason"`
}
