package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoffEngine/internal/domain"
)

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	target, err := NewFixedTargetExit(dec("0.04"))
	require.NoError(t, err)

	require.NoError(t, r.Register("fixed_target", target))
	err = r.Register("fixed_target", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_RejectsNilStrategy(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("ghost", nil))
}

func TestRegistry_UnknownNameListsValid(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	_, err = r.Get("does_not_exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consolidation, fixed_target, time_limit, trailing_stop")
}

func TestDefaultRegistry_Names(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"consolidation", "fixed_target", "time_limit", "trailing_stop"}, r.Names())
}

func TestTrailingStopExit_ArmRatchetFire(t *testing.T) {
	s, err := NewTrailingStopExit(TrailingStopConfig{
		ActivationPct: dec("0.01"),
		DistancePct:   dec("0.005"),
	})
	require.NoError(t, err)

	pos := openPosition(domain.Long, "100")
	bars := []*domain.Bar{
		makeBar("100", "100.6", "99.8", "100.5", 1000, biasBase),                   // +0.5%: not armed
		makeBar("100.5", "101.2", "100.4", "101", 1000, biasBase.Add(time.Hour)),   // +1%: arms at 101
		makeBar("101", "102.1", "100.9", "102", 1000, biasBase.Add(2*time.Hour)),   // Ratchets to 102
		makeBar("102", "102.2", "101.4", "101.6", 1000, biasBase.Add(3*time.Hour)), // Above stop 101.49
		makeBar("101.6", "101.7", "101.1", "101.4", 1000, biasBase.Add(4*time.Hour)), // Hits stop
	}

	_, exited := s.CheckExit(context.Background(), pos, bars, 0)
	assert.False(t, exited)
	assert.True(t, pos.TrailingStop.IsZero(), "stop must not arm below activation")

	_, exited = s.CheckExit(context.Background(), pos, bars, 1)
	assert.False(t, exited)
	assert.True(t, pos.HighWaterMark.Equal(dec("101")))
	assert.True(t, pos.TrailingStop.Equal(dec("100.495")))

	_, exited = s.CheckExit(context.Background(), pos, bars, 2)
	assert.False(t, exited)
	assert.True(t, pos.HighWaterMark.Equal(dec("102")))
	assert.True(t, pos.TrailingStop.Equal(dec("101.49")))

	_, exited = s.CheckExit(context.Background(), pos, bars, 3)
	assert.False(t, exited, "close 101.6 is above the 101.49 stop")
	assert.True(t, pos.HighWaterMark.Equal(dec("102")), "high-water mark must not loosen")

	sig, exited := s.CheckExit(context.Background(), pos, bars, 4)
	require.True(t, exited)
	assert.Equal(t, domain.ExitReasonTrailingStop, sig.Reason)
	assert.True(t, sig.Price.Equal(dec("101.4")))
}

func TestFixedTargetExit(t *testing.T) {
	s, err := NewFixedTargetExit(dec("0.04"))
	require.NoError(t, err)
	pos := openPosition(domain.Long, "100")

	bars := []*domain.Bar{
		makeBar("100", "104", "100", "103.9", 1000, biasBase),
		makeBar("104", "105", "103", "104", 1000, biasBase.Add(time.Hour)),
	}

	_, exited := s.CheckExit(context.Background(), pos, bars, 0)
	assert.False(t, exited, "3.9% is short of the 4% target")

	sig, exited := s.CheckExit(context.Background(), pos, bars, 1)
	require.True(t, exited)
	assert.Equal(t, domain.ExitReasonTarget, sig.Reason)
}

func TestTimeBasedExit(t *testing.T) {
	s, err := NewTimeBasedExit(48 * time.Hour)
	require.NoError(t, err)

	pos := openPosition(domain.Long, "100")
	pos.EntryTime = biasBase

	bars := []*domain.Bar{
		makeBar("100", "101", "99", "100", 1000, biasBase.Add(47*time.Hour)),
		makeBar("100", "101", "99", "100", 1000, biasBase.Add(48*time.Hour)),
	}

	_, exited := s.CheckExit(context.Background(), pos, bars, 0)
	assert.False(t, exited)

	sig, exited := s.CheckExit(context.Background(), pos, bars, 1)
	require.True(t, exited)
	assert.Equal(t, domain.ExitReasonTimeLimit, sig.Reason)
}

func TestDetectConsolidation(t *testing.T) {
	// Sideways closes with wide bar ranges: close span 1 < 1.5 * avg range 2.
	sideways := []*domain.Bar{
		makeBar("100", "101", "99", "100", 1000, biasBase),
		makeBar("100", "101.5", "99.5", "100.5", 1000, biasBase.Add(time.Hour)),
		makeBar("100.5", "101", "99", "100.2", 1000, biasBase.Add(2*time.Hour)),
		makeBar("100.2", "101.2", "99.2", "100.4", 1000, biasBase.Add(3*time.Hour)),
	}
	assert.True(t, DetectConsolidation(sideways, 3, 4))

	// Trending closes: span exceeds the limit.
	trending := []*domain.Bar{
		makeBar("100", "101", "99", "100", 1000, biasBase),
		makeBar("100", "102", "100", "102", 1000, biasBase.Add(time.Hour)),
		makeBar("102", "104", "102", "104", 1000, biasBase.Add(2*time.Hour)),
		makeBar("104", "106", "104", "106", 1000, biasBase.Add(3*time.Hour)),
	}
	assert.False(t, DetectConsolidation(trending, 3, 4))

	// Too little history never reads as consolidation.
	assert.False(t, DetectConsolidation(sideways, 1, 4))
}

func TestConsolidationExit_ProfitOnly(t *testing.T) {
	s, err := NewConsolidationExit(4)
	require.NoError(t, err)

	sideways := []*domain.Bar{
		makeBar("100", "101", "99", "100", 1000, biasBase),
		makeBar("100", "101.5", "99.5", "100.5", 1000, biasBase.Add(time.Hour)),
		makeBar("100.5", "101", "99", "100.2", 1000, biasBase.Add(2*time.Hour)),
		makeBar("100.2", "101.2", "99.2", "100.4", 1000, biasBase.Add(3*time.Hour)),
	}

	losing := openPosition(domain.Long, "105")
	_, exited := s.CheckExit(context.Background(), losing, sideways, 3)
	assert.False(t, exited, "losing positions are left to the stop loss")

	winning := openPosition(domain.Long, "95")
	sig, exited := s.CheckExit(context.Background(), winning, sideways, 3)
	require.True(t, exited)
	assert.Equal(t, domain.ExitReasonStrategy, sig.Reason)
}

func TestExitStrategy_ConstructorValidation(t *testing.T) {
	_, err := NewTrailingStopExit(TrailingStopConfig{ActivationPct: dec("0.01"), DistancePct: dec("0")})
	assert.Error(t, err)

	_, err = NewFixedTargetExit(dec("-0.01"))
	assert.Error(t, err)

	_, err = NewTimeBasedExit(0)
	assert.Error(t, err)

	_, err = NewConsolidationExit(1)
	assert.Error(t, err)
}
