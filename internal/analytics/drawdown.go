package analytics

import (
	"container/heap"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// MaxDrawdownResult holds the deepest peak-to-trough loss of an equity
// curve, as a fraction of the peak.
type MaxDrawdownResult struct {
	Drawdown   decimal.Decimal `json:"drawdown"`
	Peak       decimal.Decimal `json:"peak"`
	Trough     decimal.Decimal `json:"trough"`
	PeakTime   time.Time       `json:"peak_time"`
	TroughTime time.Time       `json:"trough_time"`
}

// MaxDrawdown computes the maximum drawdown in one forward pass: O(n) time,
// O(1) extra space. An empty or single-point curve has zero drawdown.
func MaxDrawdown(curve []domain.EquityPoint) MaxDrawdownResult {
	var res MaxDrawdownResult
	if len(curve) == 0 {
		return res
	}

	peak := curve[0].PortfolioValue
	peakTime := curve[0].Timestamp
	for _, p := range curve {
		if p.PortfolioValue.Cmp(peak) > 0 {
			peak = p.PortfolioValue
			peakTime = p.Timestamp
			continue
		}
		if peak.Sign() <= 0 {
			continue
		}
		dd := peak.Sub(p.PortfolioValue).Div(peak)
		if dd.Cmp(res.Drawdown) > 0 {
			res.Drawdown = dd
			res.Peak = peak
			res.Trough = p.PortfolioValue
			res.PeakTime = peakTime
			res.TroughTime = p.Timestamp
		}
	}
	return res
}

// DrawdownPeriod is one completed (or still open) drawdown: from the peak,
// through the trough, to recovery above the old peak.
type DrawdownPeriod struct {
	PeakTime         time.Time       `json:"peak_time"`
	TroughTime       time.Time       `json:"trough_time"`
	RecoveryTime     *time.Time      `json:"recovery_time,omitempty"` // nil if still underwater at series end
	Peak             decimal.Decimal `json:"peak"`
	Trough           decimal.Decimal `json:"trough"`
	Drawdown         decimal.Decimal `json:"drawdown"`
	Duration         time.Duration   `json:"duration"`          // Peak to trough
	RecoveryDuration time.Duration   `json:"recovery_duration"` // Trough to recovery, zero if unrecovered
}

// DrawdownPeriods walks the curve with a three-state machine (at peak, in
// drawdown, recovered) and emits one record per drawdown, filtered by an
// optional minimum magnitude. O(n) time, O(k) space for k periods.
func DrawdownPeriods(curve []domain.EquityPoint, minMagnitude decimal.Decimal) []DrawdownPeriod {
	if len(curve) == 0 {
		return nil
	}

	var periods []DrawdownPeriod
	peak := curve[0].PortfolioValue
	peakTime := curve[0].Timestamp
	inDrawdown := false
	var trough decimal.Decimal
	var troughTime time.Time

	emit := func(recovery *time.Time) {
		if peak.Sign() <= 0 {
			return
		}
		dd := peak.Sub(trough).Div(peak)
		if dd.Cmp(minMagnitude) < 0 {
			return
		}
		period := DrawdownPeriod{
			PeakTime:   peakTime,
			TroughTime: troughTime,
			Peak:       peak,
			Trough:     trough,
			Drawdown:   dd,
			Duration:   troughTime.Sub(peakTime),
		}
		if recovery != nil {
			t := *recovery
			period.RecoveryTime = &t
			period.RecoveryDuration = t.Sub(troughTime)
		}
		periods = append(periods, period)
	}

	for _, p := range curve[1:] {
		switch {
		case p.PortfolioValue.Cmp(peak) >= 0:
			if inDrawdown {
				ts := p.Timestamp
				emit(&ts)
				inDrawdown = false
			}
			peak = p.PortfolioValue
			peakTime = p.Timestamp
		case !inDrawdown:
			inDrawdown = true
			trough = p.PortfolioValue
			troughTime = p.Timestamp
		case p.PortfolioValue.Cmp(trough) < 0:
			trough = p.PortfolioValue
			troughTime = p.Timestamp
		}
	}
	if inDrawdown {
		emit(nil)
	}
	return periods
}

// periodHeap is a min-heap by drawdown magnitude, bounding TopDrawdowns to
// k entries so selection stays O(n log k).
type periodHeap []DrawdownPeriod

func (h periodHeap) Len() int            { return len(h) }
func (h periodHeap) Less(i, j int) bool  { return h[i].Drawdown.Cmp(h[j].Drawdown) < 0 }
func (h periodHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *periodHeap) Push(x interface{}) { *h = append(*h, x.(DrawdownPeriod)) }
func (h *periodHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopDrawdowns returns the n deepest drawdown periods, deepest first.
func TopDrawdowns(curve []domain.EquityPoint, n int) []DrawdownPeriod {
	if n <= 0 {
		return nil
	}
	periods := DrawdownPeriods(curve, decimal.Zero)

	h := make(periodHeap, 0, n)
	heap.Init(&h)
	for _, p := range periods {
		if h.Len() < n {
			heap.Push(&h, p)
		} else if p.Drawdown.Cmp(h[0].Drawdown) > 0 {
			h[0] = p
			heap.Fix(&h, 0)
		}
	}

	out := make([]DrawdownPeriod, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(DrawdownPeriod)
	}
	return out
}
