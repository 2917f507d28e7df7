package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// BiasConfig parameterizes the look-ahead bias detector.
type BiasConfig struct {
	// FillTolerancePct is the fraction of a bar's high-low range within
	// which an entry price is considered suspiciously close to the bar's
	// adverse-knowledge extreme. Default 0.01 (1% of the range).
	FillTolerancePct decimal.Decimal
}

// BiasViolation describes one failed bias check for one trade.
type BiasViolation struct {
	TradeIndex int    `json:"trade_index"`
	Check      string `json:"check"` // "chronological" or "realistic_fill"
	Message    string `json:"message"`
}

// BiasDetector certifies that a simulated trade set could have been produced
// without knowledge of the future: every trade is chronologically ordered
// and no entry fill sits at a bar extreme only hindsight could hit.
type BiasDetector struct {
	cfg BiasConfig
}

// NewBiasDetector validates the tolerance and constructs a detector.
func NewBiasDetector(cfg BiasConfig) (*BiasDetector, error) {
	one := decimal.NewFromInt(1)
	if cfg.FillTolerancePct.Sign() < 0 || cfg.FillTolerancePct.Cmp(one) > 0 {
		return nil, fmt.Errorf("fill tolerance pct must be within [0, 1], got %s", cfg.FillTolerancePct)
	}
	if cfg.FillTolerancePct.IsZero() {
		cfg.FillTolerancePct = decimal.NewFromFloat(0.01)
	}
	return &BiasDetector{cfg: cfg}, nil
}

type barKey struct {
	symbol string
	ts     int64
}

// CheckTrades runs both bias checks over the trade set. An empty trade set
// is trivially bias-free. When no bar matches a trade's entry timestamp the
// fill check is skipped for that trade: without the bar, bias cannot be
// asserted either way.
func (d *BiasDetector) CheckTrades(trades []*domain.Trade, bars []*domain.Bar) (bool, []BiasViolation) {
	if len(trades) == 0 {
		return true, nil
	}

	index := make(map[barKey]*domain.Bar, len(bars))
	for _, b := range bars {
		index[barKey{symbol: b.Symbol, ts: b.Timestamp.UnixNano()}] = b
	}

	var violations []BiasViolation
	for i, trade := range trades {
		if !trade.EntryTime.Before(trade.ExitTime) {
			violations = append(violations, BiasViolation{
				TradeIndex: i,
				Check:      "chronological",
				Message: fmt.Sprintf("entry time %s is not before exit time %s",
					trade.EntryTime.Format(time.RFC3339), trade.ExitTime.Format(time.RFC3339)),
			})
		}

		bar, ok := index[barKey{symbol: trade.Symbol, ts: trade.EntryTime.UnixNano()}]
		if !ok {
			continue
		}
		if v, bad := d.checkFill(i, trade, bar); bad {
			violations = append(violations, v)
		}
	}
	return len(violations) == 0, violations
}

// checkFill rejects entries within tolerance of the bar extreme that a
// same-bar decision could not have known: the low for LONG entries, the
// high for SHORT entries.
func (d *BiasDetector) checkFill(i int, trade *domain.Trade, bar *domain.Bar) (BiasViolation, bool) {
	tolerance := bar.Range().Mul(d.cfg.FillTolerancePct)

	var distance decimal.Decimal
	var extreme string
	if trade.Side == domain.Long {
		distance = trade.EntryPrice.Sub(bar.Low)
		extreme = "low"
	} else {
		distance = bar.High.Sub(trade.EntryPrice)
		extreme = "high"
	}

	if distance.Sign() >= 0 && distance.Cmp(tolerance) <= 0 {
		return BiasViolation{
			TradeIndex: i,
			Check:      "realistic_fill",
			Message: fmt.Sprintf("%s entry at %s is within %s of the bar %s (%s)",
				trade.Side, trade.EntryPrice, tolerance, extreme, bar.Timestamp.Format(time.RFC3339)),
		}, true
	}
	return BiasViolation{}, false
}
