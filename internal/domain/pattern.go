package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pattern is a candidate chart pattern emitted by an external detector.
// The engine only consumes these; the detection geometry lives outside.
type Pattern struct {
	ID         string          `json:"id"`
	Type       PatternType     `json:"type"`
	Symbol     string          `json:"symbol"`
	Timeframe  Timeframe       `json:"timeframe"`
	Price      decimal.Decimal `json:"price"`     // Price at the pattern bar
	Volume     int64           `json:"volume"`    // Volume of the pattern bar
	BarIndex   int             `json:"bar_index"` // Index into the analyzed series
	Phase      *WyckoffPhase   `json:"phase,omitempty"`
	DetectedAt time.Time       `json:"detected_at"`
}

// TradingRange describes the Creek/Ice/Jump structure of an accumulation or
// distribution range, with clustering strength scores for each boundary.
type TradingRange struct {
	Creek         decimal.Decimal `json:"creek"` // Support
	Ice           decimal.Decimal `json:"ice"`   // Resistance
	Jump          decimal.Decimal `json:"jump"`  // Markup target
	CreekStrength decimal.Decimal `json:"creek_strength"`
	IceStrength   decimal.Decimal `json:"ice_strength"`
	CauseFactor   decimal.Decimal `json:"cause_factor"` // Cause-building factor behind the Jump target
}
