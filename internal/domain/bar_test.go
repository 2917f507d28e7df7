package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBar_Range(t *testing.T) {
	bar := &Bar{High: dec("101.5"), Low: dec("99.25")}
	assert.True(t, bar.Range().Equal(dec("2.25")))
}

func TestBar_ClosePosition(t *testing.T) {
	tests := []struct {
		name  string
		bar   *Bar
		want  string
	}{
		{"close at low", &Bar{High: dec("101"), Low: dec("99"), Close: dec("99")}, "0"},
		{"close at high", &Bar{High: dec("101"), Low: dec("99"), Close: dec("101")}, "1"},
		{"close mid range", &Bar{High: dec("101"), Low: dec("99"), Close: dec("100")}, "0.5"},
		{"zero range bar", &Bar{High: dec("100"), Low: dec("100"), Close: dec("100")}, "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.bar.ClosePosition()
			assert.True(t, got.Equal(dec(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestBar_DollarVolume(t *testing.T) {
	bar := &Bar{Close: dec("100.5"), Volume: 2000}
	assert.True(t, bar.DollarVolume().Equal(dec("201000")))
}

func TestPosition_MarkPrice(t *testing.T) {
	long := &Position{Side: Long, Quantity: dec("100"), EntryPrice: dec("100")}
	assert.True(t, long.MarkPrice(dec("104")).Equal(dec("400")))
	assert.True(t, long.MarkPrice(dec("98")).Equal(dec("-200")))

	short := &Position{Side: Short, Quantity: dec("100"), EntryPrice: dec("100")}
	assert.True(t, short.MarkPrice(dec("104")).Equal(dec("-400")), "short loses as price rises")
	assert.True(t, short.MarkPrice(dec("98")).Equal(dec("200")))
}

func TestPosition_PriceChangePct(t *testing.T) {
	long := &Position{Side: Long, EntryPrice: dec("100")}
	assert.True(t, long.PriceChangePct(dec("104")).Equal(dec("0.04")))

	short := &Position{Side: Short, EntryPrice: dec("100")}
	assert.True(t, short.PriceChangePct(dec("96")).Equal(dec("0.04")), "favorable moves are positive on both sides")

	zero := &Position{Side: Long}
	assert.True(t, zero.PriceChangePct(dec("100")).IsZero())
}

func TestNewOrder_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewOrder("AAPL", Long, dec("0"))
	assert.Error(t, err)

	_, err = NewOrder("AAPL", Long, dec("-1"))
	assert.Error(t, err)

	order, err := NewOrder("AAPL", Short, dec("10"))
	require.NoError(t, err)
	assert.Equal(t, Short, order.Side)
}
