package domain

// Side represents the direction of a position or order.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason indicates why a position was (or should be) closed.
type ExitReason string

const (
	ExitReasonStopLoss     ExitReason = "stop_loss"
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonTrailingStop ExitReason = "trailing"
	ExitReasonTarget       ExitReason = "target"
	ExitReasonTimeLimit    ExitReason = "time"
	ExitReasonStrategy     ExitReason = "strategy"
	ExitReasonUnknown      ExitReason = "unknown"
)

// PatternType identifies a Wyckoff pattern.
type PatternType string

const (
	PatternSpring PatternType = "SPRING"
	PatternSOS    PatternType = "SOS"
	PatternLPS    PatternType = "LPS"
	PatternUTAD   PatternType = "UTAD"
)

// WyckoffPhase is one of the five market-structure phases (A through E).
type WyckoffPhase string

const (
	PhaseA WyckoffPhase = "A"
	PhaseB WyckoffPhase = "B"
	PhaseC WyckoffPhase = "C"
	PhaseD WyckoffPhase = "D"
	PhaseE WyckoffPhase = "E"
)

// Timeframe identifies the bar interval (e.g., "1h", "1d").
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

// tradingDaysPerYear is the standard trading calendar length used for
// annualization.
const tradingDaysPerYear = 252

// BarsPerYear returns the number of bars of this timeframe in one trading
// year. An unrecognized timeframe falls back to the daily count rather than
// failing, so metrics stay computable on exotic intervals.
func (tf Timeframe) BarsPerYear() int {
	switch tf {
	case Timeframe1m:
		return tradingDaysPerYear * 24 * 60
	case Timeframe5m:
		return tradingDaysPerYear * 24 * 12
	case Timeframe15m:
		return tradingDaysPerYear * 24 * 4
	case Timeframe30m:
		return tradingDaysPerYear * 24 * 2
	case Timeframe1h:
		return tradingDaysPerYear * 24
	case Timeframe4h:
		return tradingDaysPerYear * 6
	case Timeframe1d:
		return tradingDaysPerYear
	case Timeframe1w:
		return 52
	default:
		return tradingDaysPerYear
	}
}
