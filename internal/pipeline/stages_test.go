package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/risk"
	"wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/validation"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// springEmitter fires a phase C spring at the final bar when armed.
type springEmitter struct {
	armed bool
}

func (d *springEmitter) Detect(ctx context.Context, bars []*domain.Bar, index int) (*domain.Pattern, error) {
	if !d.armed {
		return nil, nil
	}
	phase := domain.PhaseC
	bar := bars[index]
	return &domain.Pattern{
		ID:       "p-spring",
		Type:     domain.PatternSpring,
		Symbol:   bar.Symbol,
		Price:    bar.Close,
		Volume:   bar.Volume,
		BarIndex: index,
		Phase:    &phase,
	}, nil
}

// springWindow is a quiet series with a low-volume final bar the emitter can
// flag.
func springWindow() []*domain.Bar {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, 16)
	for i := range bars {
		volume := int64(1000)
		if i == 15 {
			volume = 500
		}
		bars[i] = &domain.Bar{
			Symbol:    "AAPL",
			Timeframe: domain.Timeframe1h,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      dec("101"),
			High:      dec("102"),
			Low:       dec("99.5"),
			Close:     dec("101"),
			Volume:    volume,
		}
	}
	return bars
}

func buildAnalysisContext(ctx context.Context, input *Input, sig *signal.Signal) (*validation.Context, error) {
	return &validation.Context{
		Pattern:   sig.Pattern,
		Symbol:    input.Symbol,
		Timeframe: input.Timeframe,
		Volume:    sig.Volume,
		Phase:     sig.Pattern.Phase,
		Range: &domain.TradingRange{
			Creek:         dec("100"),
			Ice:           dec("110"),
			Jump:          dec("120"),
			CreekStrength: dec("75"),
			IceStrength:   dec("80"),
			CauseFactor:   dec("2"),
		},
		Portfolio: &validation.PortfolioContext{
			AccountEquity:   dec("100000"),
			RiskPerTradePct: dec("1"),
		},
	}, nil
}

func newAnalysisPipeline(t *testing.T, emitter *springEmitter, heat string) *Coordinator {
	t.Helper()
	logger := &mockLogger{}

	detector, err := signal.NewValidatedDetector(emitter, signal.DetectorConfig{LookbackBars: 10}, nil, logger)
	require.NoError(t, err)
	chain, err := validation.NewChain(logger)
	require.NoError(t, err)
	gate, err := risk.NewGate(logger)
	require.NoError(t, err)

	state := func(ctx context.Context, symbol string) (risk.PortfolioState, error) {
		return risk.PortfolioState{AccountEquity: dec("100000"), HeatPct: dec(heat)}, nil
	}

	c, err := NewCoordinator(CoordinatorConfig{
		Stages: []Stage{
			&DetectionStage{Detector: detector},
			&ValidationStage{Chain: chain, Build: buildAnalysisContext},
			&GateStage{Gate: gate, State: state, RiskPct: dec("1")},
		},
		Logger: logger,
	})
	require.NoError(t, err)
	return c
}

func TestAnalysisPipeline_CleanSignalReachesGate(t *testing.T) {
	c := newAnalysisPipeline(t, &springEmitter{armed: true}, "0")

	report, err := c.Run(context.Background(), &Input{
		Symbol: "AAPL", Timeframe: domain.Timeframe1h, Bars: springWindow(),
	})
	require.NoError(t, err)

	out := report.Context
	require.NotNil(t, out.Signal)
	require.Len(t, out.Patterns, 1)
	require.NotNil(t, out.Chain)
	assert.True(t, out.Chain.IsValid)
	require.NotNil(t, out.PreFlight)
	assert.True(t, out.PreFlight.Passed)
}

func TestAnalysisPipeline_QuietWindowStopsAfterDetection(t *testing.T) {
	c := newAnalysisPipeline(t, &springEmitter{}, "0")

	report, err := c.Run(context.Background(), &Input{
		Symbol: "AAPL", Timeframe: domain.Timeframe1h, Bars: springWindow(),
	})
	require.NoError(t, err)

	out := report.Context
	assert.Nil(t, out.Signal)
	assert.Nil(t, out.Chain, "validation is a no-op without a signal")
	assert.Nil(t, out.PreFlight, "the gate never fires without a signal")
}

func TestAnalysisPipeline_HotPortfolioBlocksAtGate(t *testing.T) {
	c := newAnalysisPipeline(t, &springEmitter{armed: true}, "9.5")

	report, err := c.Run(context.Background(), &Input{
		Symbol: "AAPL", Timeframe: domain.Timeframe1h, Bars: springWindow(),
	})
	require.NoError(t, err)

	out := report.Context
	require.NotNil(t, out.PreFlight)
	assert.False(t, out.PreFlight.Passed)
	require.Len(t, out.PreFlight.Violations, 1)
	assert.Equal(t, "portfolio_heat", out.PreFlight.Violations[0].Limit)
}

func TestDetectionStage_RequiresBars(t *testing.T) {
	logger := &mockLogger{}
	detector, err := signal.NewValidatedDetector(&springEmitter{}, signal.DetectorConfig{}, nil, logger)
	require.NoError(t, err)

	stage := &DetectionStage{Detector: detector}
	err = stage.Run(context.Background(), &Input{Symbol: "AAPL"}, &Context{})
	assert.Error(t, err)
}

func TestGateStage_SkipsRejectedCandidates(t *testing.T) {
	gate, err := risk.NewGate(&mockLogger{})
	require.NoError(t, err)

	called := false
	stage := &GateStage{
		Gate: gate,
		State: func(ctx context.Context, symbol string) (risk.PortfolioState, error) {
			called = true
			return risk.PortfolioState{}, nil
		},
		RiskPct: dec("1"),
	}

	rejected := validation.NewPipeline()
	rejected.Add(validation.StageResult{Stage: "volume", Status: validation.StatusFail, Reason: "too loud"})

	out := &Context{Signal: &signal.Signal{}, Chain: rejected}
	require.NoError(t, stage.Run(context.Background(), &Input{Symbol: "AAPL"}, out))

	assert.False(t, called, "a rejected candidate never reaches the gate")
	assert.Nil(t, out.PreFlight)
}

func TestGateStage_StateProviderFailure(t *testing.T) {
	gate, err := risk.NewGate(&mockLogger{})
	require.NoError(t, err)

	stage := &GateStage{
		Gate: gate,
		State: func(ctx context.Context, symbol string) (risk.PortfolioState, error) {
			return risk.PortfolioState{}, errors.New("ledger offline")
		},
		RiskPct: dec("1"),
	}

	valid := validation.NewPipeline()
	out := &Context{Signal: &signal.Signal{}, Chain: valid}
	err = stage.Run(context.Background(), &Input{Symbol: "AAPL"}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portfolio state")
}
