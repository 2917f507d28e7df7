package ports

import (
	"context"

	"wyckoffEngine/internal/domain"
)

// PatternDetector is the external pattern-recognition capability. The engine
// never implements detection geometry; it only consumes candidates.
type PatternDetector interface {
	// Detect inspects the series up to and including index and returns a
	// candidate pattern ending at that bar, or nil, nil when there is none.
	Detect(ctx context.Context, bars []*domain.Bar, index int) (*domain.Pattern, error)
}

// BarProvider supplies chronologically ordered OHLCV bars for a symbol and
// timeframe. Implementations own rate limiting, retries, and timeouts.
type BarProvider interface {
	GetBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64, limit int) ([]*domain.Bar, error)
}
