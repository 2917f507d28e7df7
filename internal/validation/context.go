package validation

import (
	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// VolumeAnalysis carries the volume evidence for a candidate pattern,
// relative to its lookback baseline.
type VolumeAnalysis struct {
	Ratio         decimal.Decimal // Pattern bar volume / lookback average
	AverageVolume decimal.Decimal // The lookback average itself
	BaselineBars  int             // Bars contributing to the average
	ClosePosition decimal.Decimal // Close location within the bar range, [0, 1]
}

// PortfolioContext is the read-only account snapshot used for sizing
// feasibility checks.
type PortfolioContext struct {
	AccountEquity   decimal.Decimal
	RiskPerTradePct decimal.Decimal // Proposed risk for this trade, in percent
}

// Context is the shared, read-only input handed to every validation stage.
// Optional fields are nil when the caller has no such evidence; each stage
// documents its policy for missing data.
type Context struct {
	Pattern   *domain.Pattern
	Symbol    string
	Timeframe domain.Timeframe
	Volume    *VolumeAnalysis
	Phase     *domain.WyckoffPhase
	Range     *domain.TradingRange
	History   []domain.PatternType // Prior patterns of the owning campaign, oldest first
	Portfolio *PortfolioContext
}
