package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoffEngine/internal/domain"
)

var biasBase = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func biasTrade(side domain.Side, entryPrice string, entry, exit time.Time) *domain.Trade {
	return &domain.Trade{
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   dec("100"),
		EntryPrice: dec(entryPrice),
		ExitPrice:  dec("105"),
		EntryTime:  entry,
		ExitTime:   exit,
	}
}

func TestNewBiasDetector_Validation(t *testing.T) {
	_, err := NewBiasDetector(BiasConfig{FillTolerancePct: dec("1.5")})
	assert.Error(t, err)

	_, err = NewBiasDetector(BiasConfig{FillTolerancePct: dec("-0.1")})
	assert.Error(t, err)
}

func TestBiasDetector_EmptyTradesAreBiasFree(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	ok, violations := d.CheckTrades(nil, []*domain.Bar{makeBar("100", "101", "99", "100", 1000, biasBase)})

	assert.True(t, ok)
	assert.Nil(t, violations)
}

func TestBiasDetector_ChronologicalViolation(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	trade := biasTrade(domain.Long, "100", biasBase.Add(time.Hour), biasBase)

	ok, violations := d.CheckTrades([]*domain.Trade{trade}, nil)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "chronological", violations[0].Check)
	assert.Equal(t, 0, violations[0].TradeIndex)
}

func TestBiasDetector_EqualEntryExitTimeViolates(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	trade := biasTrade(domain.Long, "100", biasBase, biasBase)

	ok, violations := d.CheckTrades([]*domain.Trade{trade}, nil)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "chronological", violations[0].Check)
}

func TestBiasDetector_RealisticFill(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	// Entry bar with range 99..101; 1% tolerance is 0.02 of that range.
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 1000, biasBase)}

	tests := []struct {
		name       string
		side       domain.Side
		entryPrice string
		wantOK     bool
	}{
		{"long entry at exact low rejected", domain.Long, "99", false},
		{"long entry within tolerance of low rejected", domain.Long, "99.01", false},
		{"long entry above tolerance accepted", domain.Long, "99.5", true},
		{"short entry at exact high rejected", domain.Short, "101", false},
		{"short entry below tolerance accepted", domain.Short, "100.5", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := biasTrade(tt.side, tt.entryPrice, biasBase, biasBase.Add(time.Hour))
			ok, violations := d.CheckTrades([]*domain.Trade{trade}, bars)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				require.Len(t, violations, 1)
				assert.Equal(t, "realistic_fill", violations[0].Check)
			}
		})
	}
}

func TestBiasDetector_MissingBarSkipsFillCheck(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	// No bar matches the entry timestamp: chronology is checkable, the fill
	// is not.
	trade := biasTrade(domain.Long, "99", biasBase.Add(30*time.Minute), biasBase.Add(time.Hour))
	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 1000, biasBase)}

	ok, violations := d.CheckTrades([]*domain.Trade{trade}, bars)

	assert.True(t, ok)
	assert.Nil(t, violations)
}

func TestBiasDetector_ReportsAllTrades(t *testing.T) {
	d, err := NewBiasDetector(BiasConfig{})
	require.NoError(t, err)

	bars := []*domain.Bar{makeBar("100", "101", "99", "100", 1000, biasBase)}
	trades := []*domain.Trade{
		biasTrade(domain.Long, "99", biasBase, biasBase.Add(time.Hour)),  // Fill violation
		biasTrade(domain.Long, "100", biasBase.Add(2*time.Hour), biasBase), // Chronological violation
		biasTrade(domain.Long, "100", biasBase, biasBase.Add(time.Hour)), // Clean
	}

	ok, violations := d.CheckTrades(trades, bars)

	assert.False(t, ok)
	require.Len(t, violations, 2)
	assert.Equal(t, 0, violations[0].TradeIndex)
	assert.Equal(t, 1, violations[1].TradeIndex)
}
