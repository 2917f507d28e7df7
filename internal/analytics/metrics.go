package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// PerformanceMetrics holds comprehensive performance metrics for a
// simulated strategy run. Money and ratios that feed risk comparisons are
// decimal; the Sharpe ratio is a pure statistic and stays float64.
type PerformanceMetrics struct {
	TotalTrades        int             `json:"total_trades"`
	WinningTrades      int             `json:"winning_trades"`
	LosingTrades       int             `json:"losing_trades"`
	WinRate            decimal.Decimal `json:"win_rate"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	ProfitFactor       decimal.Decimal `json:"profit_factor"`
	AverageWin         decimal.Decimal `json:"average_win"`
	AverageLoss        decimal.Decimal `json:"average_loss"`
	Expectancy         decimal.Decimal `json:"expectancy"`
	SharpeRatio        float64         `json:"sharpe_ratio"`
	FinalBalance       decimal.Decimal `json:"final_balance"`
	ReturnOnInvestment decimal.Decimal `json:"return_on_investment"`

	MaxConsecutiveWins   int           `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int           `json:"max_consecutive_losses"`
	AverageTradeDuration time.Duration `json:"average_trade_duration"`
}

// AnalyzeTrades computes trade statistics from a completed trade list.
// Trades are evaluated in entry-time order.
func AnalyzeTrades(trades []*domain.Trade, initialBalance decimal.Decimal) *PerformanceMetrics {
	m := &PerformanceMetrics{FinalBalance: initialBalance}
	if len(trades) == 0 {
		return m
	}

	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EntryTime.Before(sorted[j].EntryTime)
	})

	var (
		balance            = initialBalance
		grossWin, grossLos decimal.Decimal
		consecWins         int
		consecLosses       int
		totalDuration      time.Duration
	)

	for _, trade := range sorted {
		m.TotalTrades++
		balance = balance.Add(trade.PNL)
		m.TotalProfit = m.TotalProfit.Add(trade.PNL)
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		if trade.PNL.Sign() > 0 {
			m.WinningTrades++
			grossWin = grossWin.Add(trade.PNL)
			consecWins++
			consecLosses = 0
		} else {
			m.LosingTrades++
			grossLos = grossLos.Add(trade.PNL)
			consecLosses++
			consecWins = 0
		}
		if consecWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecWins
		}
		if consecLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecLosses
		}
	}

	m.FinalBalance = balance
	total := decimal.NewFromInt(int64(m.TotalTrades))
	m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(total)
	m.AverageTradeDuration = totalDuration / time.Duration(m.TotalTrades)

	if m.WinningTrades > 0 {
		m.AverageWin = grossWin.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLos.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	if grossLos.Sign() < 0 {
		m.ProfitFactor = grossWin.Div(grossLos.Neg())
	}
	if !initialBalance.IsZero() {
		m.ReturnOnInvestment = balance.Sub(initialBalance).Div(initialBalance)
	}

	// Expectancy = winRate * avgWin + (1 - winRate) * avgLoss
	one := decimal.NewFromInt(1)
	m.Expectancy = m.WinRate.Mul(m.AverageWin).Add(one.Sub(m.WinRate).Mul(m.AverageLoss))

	return m
}

// SharpeRatio computes the annualized Sharpe ratio of an equity curve,
// assuming a zero risk-free rate. The annualization factor is
// sqrt(bars per year) for the curve's timeframe, so intraday curves are not
// inflated by a hardcoded daily factor.
func SharpeRatio(curve []domain.EquityPoint, timeframe domain.Timeframe) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].PortfolioValue.Float64()
		cur, _ := curve[i].PortfolioValue.Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, cur/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(float64(timeframe.BarsPerYear()))
}
