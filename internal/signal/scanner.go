package signal

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// SpringScanner is a minimal reference detector: a bar that undercuts the
// trailing window low and closes back in the upper half of its range reads
// as a phase C spring. Production deployments plug in a real detector.
type SpringScanner struct {
	Window int // Trailing low window (default 20)
}

func (d *SpringScanner) Detect(ctx context.Context, bars []*domain.Bar, index int) (*domain.Pattern, error) {
	window := d.Window
	if window <= 0 {
		window = 20
	}
	if index < window {
		return nil, nil
	}
	bar := bars[index]

	windowLow := bars[index-window].Low
	for _, b := range bars[index-window : index] {
		if b.Low.Cmp(windowLow) < 0 {
			windowLow = b.Low
		}
	}
	if bar.Low.Cmp(windowLow) >= 0 {
		return nil, nil
	}
	if bar.ClosePosition().Cmp(decimal.NewFromFloat(0.5)) < 0 {
		return nil, nil
	}

	phase := domain.PhaseC
	return &domain.Pattern{
		ID:         uuid.NewString(),
		Type:       domain.PatternSpring,
		Symbol:     bar.Symbol,
		Timeframe:  bar.Timeframe,
		Price:      bar.Close,
		Volume:     bar.Volume,
		BarIndex:   index,
		Phase:      &phase,
		DetectedAt: bar.Timestamp,
	}, nil
}
