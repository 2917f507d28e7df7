package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single OHLCV candlestick. Bars are immutable once
// ingested; nothing in the engine mutates a bar after construction.
type Bar struct {
	Symbol    string          `json:"symbol"`
	Timeframe Timeframe       `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Range returns the high-low spread of the bar.
func (b *Bar) Range() decimal.Decimal {
	return b.High.Sub(b.Low)
}

// ClosePosition returns where the close sits within the bar's range as a
// fraction in [0, 1] (0 = close at the low, 1 = close at the high).
// A zero-range bar reports 0.5.
func (b *Bar) ClosePosition() decimal.Decimal {
	r := b.Range()
	if r.IsZero() {
		return decimal.NewFromFloat(0.5)
	}
	return b.Close.Sub(b.Low).Div(r)
}

// DollarVolume returns close * volume, the notional traded on this bar.
func (b *Bar) DollarVolume() decimal.Decimal {
	return b.Close.Mul(decimal.NewFromInt(b.Volume))
}
