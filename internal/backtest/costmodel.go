package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// CostModel prices the frictions of a fill: commission and slippage.
// Slippage is signed: positive raises a BUY fill price, negative lowers
// SELL proceeds. The slippage reference bar is the bar the order fills on;
// bars[:index+1] supplies the liquidity history.
type CostModel interface {
	Commission(order *domain.Order) decimal.Decimal
	Slippage(order *domain.Order, bars []*domain.Bar, index int) decimal.Decimal
}

// ZeroCostModel prices every fill as free. Used to isolate signal-detection
// correctness from cost effects.
type ZeroCostModel struct{}

func (ZeroCostModel) Commission(order *domain.Order) decimal.Decimal {
	return decimal.Zero
}

func (ZeroCostModel) Slippage(order *domain.Order, bars []*domain.Bar, index int) decimal.Decimal {
	return decimal.Zero
}

// RealisticCostConfig holds parameters for the realistic cost model.
// Zero values fall back to the documented defaults.
type RealisticCostConfig struct {
	CommissionPerShare decimal.Decimal // e.g., 0.005 per share
	MinCommission      decimal.Decimal // Floor per order, e.g., 1.00
	SlippagePct        decimal.Decimal // Fraction of the bar range lost to spread crossing, in [0, 1]

	LiquidityWindow        int             // Rolling bars for avg dollar volume (default 20)
	HighLiquidityThreshold decimal.Decimal // Dollar volume separating tiers (default 1,000,000)

	ImpactThreshold    decimal.Decimal // Participation rate where impact starts (default 0.10)
	ImpactPerIncrement decimal.Decimal // Added slippage per threshold increment (default 0.0001)
}

// Tiered slippage percentages against the fill reference (bar open).
var (
	highLiquiditySlippagePct = decimal.NewFromFloat(0.0002) // 0.02%
	lowLiquiditySlippagePct  = decimal.NewFromFloat(0.0005) // 0.05%
)

// RealisticCostModel implements commission with a minimum floor, bar-range
// slippage, a liquidity tier selected from rolling dollar volume, and a
// participation-based market-impact surcharge.
type RealisticCostModel struct {
	cfg RealisticCostConfig
}

// NewRealisticCostModel validates the configuration and constructs the
// model. Invalid parameters fail here, never at fill time.
func NewRealisticCostModel(cfg RealisticCostConfig) (*RealisticCostModel, error) {
	if cfg.CommissionPerShare.Sign() < 0 {
		return nil, fmt.Errorf("commission per share cannot be negative, got %s", cfg.CommissionPerShare)
	}
	if cfg.MinCommission.Sign() < 0 {
		return nil, fmt.Errorf("minimum commission cannot be negative, got %s", cfg.MinCommission)
	}
	one := decimal.NewFromInt(1)
	if cfg.SlippagePct.Sign() < 0 || cfg.SlippagePct.Cmp(one) > 0 {
		return nil, fmt.Errorf("slippage pct must be within [0, 1], got %s", cfg.SlippagePct)
	}
	if cfg.ImpactThreshold.Sign() < 0 || cfg.ImpactThreshold.Cmp(one) > 0 {
		return nil, fmt.Errorf("impact threshold must be within [0, 1], got %s", cfg.ImpactThreshold)
	}
	if cfg.ImpactPerIncrement.Sign() < 0 {
		return nil, fmt.Errorf("impact per increment cannot be negative, got %s", cfg.ImpactPerIncrement)
	}
	if cfg.LiquidityWindow < 0 {
		return nil, fmt.Errorf("liquidity window cannot be negative, got %d", cfg.LiquidityWindow)
	}
	if cfg.LiquidityWindow == 0 {
		cfg.LiquidityWindow = 20
	}
	if cfg.HighLiquidityThreshold.IsZero() {
		cfg.HighLiquidityThreshold = decimal.NewFromInt(1_000_000)
	}
	if cfg.ImpactThreshold.IsZero() {
		cfg.ImpactThreshold = decimal.NewFromFloat(0.10)
	}
	if cfg.ImpactPerIncrement.IsZero() {
		cfg.ImpactPerIncrement = decimal.NewFromFloat(0.0001)
	}
	return &RealisticCostModel{cfg: cfg}, nil
}

// Commission returns max(MinCommission, quantity * CommissionPerShare).
func (m *RealisticCostModel) Commission(order *domain.Order) decimal.Decimal {
	c := order.Quantity.Mul(m.cfg.CommissionPerShare)
	if c.Cmp(m.cfg.MinCommission) < 0 {
		return m.cfg.MinCommission
	}
	return c
}

// Slippage returns the total signed slippage cost for the order filling on
// bars[index]: the bar-range base cost plus the liquidity-tier and
// market-impact percentages applied to the bar's open.
func (m *RealisticCostModel) Slippage(order *domain.Order, bars []*domain.Bar, index int) decimal.Decimal {
	bar := bars[index]

	perUnit := bar.Range().Mul(m.cfg.SlippagePct)
	tierPct := m.liquidityTierPct(bars, index)
	impactPct := m.marketImpactPct(order.Quantity, bar.Volume)
	perUnit = perUnit.Add(bar.Open.Mul(tierPct.Add(impactPct)))

	total := perUnit.Mul(order.Quantity)
	if order.Side == domain.Short {
		return total.Neg()
	}
	return total
}

// liquidityTierPct classifies the symbol's liquidity from the rolling
// average dollar volume ending at index. Short histories still classify
// (min periods of one).
func (m *RealisticCostModel) liquidityTierPct(bars []*domain.Bar, index int) decimal.Decimal {
	start := index - m.cfg.LiquidityWindow + 1
	if start < 0 {
		start = 0
	}
	sum := decimal.Zero
	n := 0
	for i := start; i <= index; i++ {
		sum = sum.Add(bars[i].DollarVolume())
		n++
	}
	if n == 0 {
		return lowLiquiditySlippagePct
	}
	avg := sum.Div(decimal.NewFromInt(int64(n)))
	if avg.Cmp(m.cfg.HighLiquidityThreshold) >= 0 {
		return highLiquiditySlippagePct
	}
	return lowLiquiditySlippagePct
}

// marketImpactPct returns the participation-based surcharge. A zero bar
// volume is treated as full participation, the conservative maximum-impact
// case.
func (m *RealisticCostModel) marketImpactPct(quantity decimal.Decimal, barVolume int64) decimal.Decimal {
	var participation decimal.Decimal
	if barVolume == 0 {
		participation = decimal.NewFromInt(1)
	} else {
		participation = quantity.Div(decimal.NewFromInt(barVolume))
	}
	if participation.Cmp(m.cfg.ImpactThreshold) <= 0 {
		return decimal.Zero
	}
	increments := participation.Sub(m.cfg.ImpactThreshold).Div(m.cfg.ImpactThreshold).Ceil()
	return increments.Mul(m.cfg.ImpactPerIncrement)
}
