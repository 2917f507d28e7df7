package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoffEngine/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func makeBar(open, high, low, closePx string, volume int64, ts time.Time) *domain.Bar {
	return &domain.Bar{
		Symbol:    "AAPL",
		Timeframe: domain.Timeframe1d,
		Timestamp: ts,
		Open:      dec(open),
		High:      dec(high),
		Low:       dec(low),
		Close:     dec(closePx),
		Volume:    volume,
	}
}

func mustOrder(t *testing.T, side domain.Side, qty string) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("AAPL", side, dec(qty))
	require.NoError(t, err)
	return order
}

func TestNewRealisticCostModel_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RealisticCostConfig
		wantErr string
	}{
		{
			name:    "negative commission rejected",
			cfg:     RealisticCostConfig{CommissionPerShare: dec("-0.01")},
			wantErr: "commission per share",
		},
		{
			name:    "slippage pct above one rejected",
			cfg:     RealisticCostConfig{SlippagePct: dec("1.5")},
			wantErr: "slippage pct",
		},
		{
			name:    "negative min commission rejected",
			cfg:     RealisticCostConfig{MinCommission: dec("-1")},
			wantErr: "minimum commission",
		},
		{
			name:    "negative liquidity window rejected",
			cfg:     RealisticCostConfig{LiquidityWindow: -5},
			wantErr: "liquidity window",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRealisticCostModel(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRealisticCostModel_CommissionFloor(t *testing.T) {
	model, err := NewRealisticCostModel(RealisticCostConfig{
		CommissionPerShare: dec("0.005"),
		MinCommission:      dec("1"),
	})
	require.NoError(t, err)

	small := model.Commission(mustOrder(t, domain.Long, "100"))
	assert.True(t, small.Equal(dec("1")), "100 shares at 0.005 is 0.50, floored to 1.00, got %s", small)

	large := model.Commission(mustOrder(t, domain.Long, "1000"))
	assert.True(t, large.Equal(dec("5")), "1000 shares at 0.005 should cost 5.00, got %s", large)
}

func TestRealisticCostModel_MarketImpactTiers(t *testing.T) {
	// Range slippage zeroed so only tier and impact percentages remain.
	model, err := NewRealisticCostModel(RealisticCostConfig{})
	require.NoError(t, err)

	// Low-liquidity bar: dollar volume 100 * 1000 = 100k, under the 1M tier.
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 1000, time.Now())}

	tests := []struct {
		name     string
		qty      string
		expected string // per-unit pct applied to open 100, times qty
	}{
		// participation 10% == threshold: no impact, low tier only (0.05%)
		{"at threshold no impact", "100", "5"},
		// participation 35%: ceil((0.35-0.10)/0.10) = 3 increments -> 0.03%
		// per unit: 100 * (0.0005 + 0.0003) = 0.08; total 0.08 * 350 = 28
		{"thirty five percent participation", "350", "28"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.Slippage(mustOrder(t, domain.Long, tt.qty), bars, 0)
			assert.True(t, got.Equal(dec(tt.expected)), "want %s, got %s", tt.expected, got)
		})
	}
}

func TestRealisticCostModel_ZeroVolumeIsMaxImpact(t *testing.T) {
	model, err := NewRealisticCostModel(RealisticCostConfig{})
	require.NoError(t, err)

	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 0, time.Now())}

	// Full participation: ceil((1.0-0.1)/0.1) = 9 increments -> 0.09%.
	// Zero dollar volume means low tier: per unit 100 * (0.0005 + 0.0009).
	got := model.Slippage(mustOrder(t, domain.Long, "10"), bars, 0)
	assert.True(t, got.Equal(dec("1.4")), "want 1.4, got %s", got)
}

func TestRealisticCostModel_LiquidityTier(t *testing.T) {
	model, err := NewRealisticCostModel(RealisticCostConfig{})
	require.NoError(t, err)

	// Dollar volume 100 * 20000 = 2M: high-liquidity tier (0.02%).
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 20000, time.Now())}

	got := model.Slippage(mustOrder(t, domain.Long, "100"), bars, 0)
	assert.True(t, got.Equal(dec("2")), "per unit 100 * 0.0002 over 100 shares, got %s", got)
}

func TestRealisticCostModel_RangeComponent(t *testing.T) {
	model, err := NewRealisticCostModel(RealisticCostConfig{
		SlippagePct: dec("0.1"),
	})
	require.NoError(t, err)

	// Range 2.00 * 10% = 0.20 per unit, plus high tier 100 * 0.0002 = 0.02.
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 20000, time.Now())}

	got := model.Slippage(mustOrder(t, domain.Long, "10"), bars, 0)
	assert.True(t, got.Equal(dec("2.2")), "want 2.2, got %s", got)
}

func TestRealisticCostModel_SellSlippageIsNegative(t *testing.T) {
	model, err := NewRealisticCostModel(RealisticCostConfig{})
	require.NoError(t, err)

	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 20000, time.Now())}

	buy := model.Slippage(mustOrder(t, domain.Long, "100"), bars, 0)
	sell := model.Slippage(mustOrder(t, domain.Short, "100"), bars, 0)
	assert.True(t, sell.Equal(buy.Neg()), "sell slippage mirrors buy: %s vs %s", sell, buy)
}

func TestZeroCostModel(t *testing.T) {
	model := ZeroCostModel{}
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 1000, time.Now())}
	order := mustOrder(t, domain.Long, "100")

	assert.True(t, model.Commission(order).IsZero())
	assert.True(t, model.Slippage(order, bars, 0).IsZero())
}
