package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// PositionRepository defines the interface for storing and retrieving
// trading positions. The repository owns P&L recomputation: price updates
// refresh unrealized P&L, and Close computes the realized P&L exactly once.
type PositionRepository interface {
	// Create saves a new position and returns its assigned ID.
	Create(ctx context.Context, pos *domain.Position) (int64, error)
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindByID retrieves a position by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id int64) (*domain.Position, error)
	// FindOpenByCampaign retrieves all open positions for a campaign.
	FindOpenByCampaign(ctx context.Context, campaignID string) ([]*domain.Position, error)
	// UpdatePrice sets the current price of an open position and recomputes
	// its unrealized P&L.
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error
	// UpdatePrices applies many price updates in one call.
	UpdatePrices(ctx context.Context, prices map[int64]decimal.Decimal) error
	// Close closes an open position at the given price and time, computing
	// realized P&L. Closing an already-closed position is an error.
	Close(ctx context.Context, id int64, exitPrice decimal.Decimal, exitTime time.Time, reason domain.ExitReason) error
}

// CampaignRepository defines the interface for storing and retrieving
// Wyckoff campaigns.
type CampaignRepository interface {
	// Create saves a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error
	// Update persists campaign mutations (state, phase, pattern list).
	Update(ctx context.Context, c *domain.Campaign) error
	// FindByID retrieves a campaign by ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.Campaign, error)
	// FindOpenBySymbol retrieves the non-terminal campaign for a symbol,
	// if any. Returns nil, nil if none exists.
	FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Campaign, error)
}
