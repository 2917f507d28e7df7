package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
)

// ManagerConfig holds the dependencies for the campaign manager.
type ManagerConfig struct {
	Positions ports.PositionRepository
	Campaigns ports.CampaignRepository
	Logger    ports.Logger
}

// Manager owns the campaign lifecycle and the positions attached to each
// campaign. Every mutation goes through the domain state machine first and
// is persisted only after it is accepted, so the store never holds an
// illegal state.
type Manager struct {
	positions ports.PositionRepository
	campaigns ports.CampaignRepository
	logger    ports.Logger
	now       func() time.Time
}

// NewManager constructs the campaign manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Positions == nil {
		return nil, fmt.Errorf("position repository is required for campaign manager")
	}
	if cfg.Campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required for campaign manager")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for campaign manager")
	}
	return &Manager{
		positions: cfg.Positions,
		campaigns: cfg.Campaigns,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// OpenCampaign returns the non-terminal campaign for a symbol, or nil, nil
// when none exists.
func (m *Manager) OpenCampaign(ctx context.Context, symbol string) (*domain.Campaign, error) {
	return m.campaigns.FindOpenBySymbol(ctx, symbol)
}

// RecordPattern attaches a detected pattern to the symbol's open campaign,
// creating a FORMING campaign when none exists yet.
func (m *Manager) RecordPattern(ctx context.Context, pattern *domain.Pattern) (*domain.Campaign, error) {
	if pattern == nil {
		return nil, fmt.Errorf("cannot record a nil pattern")
	}
	phase := domain.PhaseA
	if pattern.Phase != nil {
		phase = *pattern.Phase
	}

	c, err := m.campaigns.FindOpenBySymbol(ctx, pattern.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open campaign for %s: %w", pattern.Symbol, err)
	}
	if c == nil {
		now := m.now().UTC()
		c = &domain.Campaign{
			ID:        uuid.NewString(),
			Symbol:    pattern.Symbol,
			State:     domain.CampaignForming,
			Phase:     phase,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.RecordPattern(pattern.ID, phase, now); err != nil {
			return nil, err
		}
		if err := m.campaigns.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to create campaign for %s: %w", pattern.Symbol, err)
		}
		m.logger.Info(ctx, "Campaign opened", map[string]interface{}{
			"campaignID": c.ID, "symbol": c.Symbol, "pattern": string(pattern.Type),
		})
		return c, nil
	}

	if err := c.RecordPattern(pattern.ID, phase, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.campaigns.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update campaign %s: %w", c.ID, err)
	}
	return c, nil
}

// Transition moves a campaign through its state machine and persists the
// accepted transition.
func (m *Manager) Transition(ctx context.Context, campaignID string, target domain.CampaignState) error {
	c, err := m.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %s: %w", campaignID, err)
	}
	if c == nil {
		return fmt.Errorf("campaign %s: %w", campaignID, ports.ErrNotFound)
	}

	from := c.State
	if err := c.Transition(target, m.now().UTC()); err != nil {
		return err
	}
	if err := m.campaigns.Update(ctx, c); err != nil {
		return fmt.Errorf("failed to persist campaign %s transition: %w", campaignID, err)
	}
	m.logger.Info(ctx, "Campaign state changed", map[string]interface{}{
		"campaignID": campaignID, "from": string(from), "to": string(target),
	})
	return nil
}

// UpdatePositionPrices marks every open position of the campaign to the new
// price in one batch, recomputing unrealized P&L in the repository.
func (m *Manager) UpdatePositionPrices(ctx context.Context, campaignID string, price decimal.Decimal) error {
	open, err := m.positions.FindOpenByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load open positions for campaign %s: %w", campaignID, err)
	}
	if len(open) == 0 {
		return nil
	}

	prices := make(map[int64]decimal.Decimal, len(open))
	for _, p := range open {
		prices[p.ID] = price
	}
	if err := m.positions.UpdatePrices(ctx, prices); err != nil {
		return fmt.Errorf("failed to update prices for campaign %s: %w", campaignID, err)
	}
	return nil
}

// UpdatePositionState marks one campaign position to the bar close,
// recomputing its unrealized P&L in the repository. The single-position
// variant of UpdatePositionPrices, for callers tracking an individual fill.
func (m *Manager) UpdatePositionState(ctx context.Context, campaignID string, positionID int64, bar *domain.Bar) error {
	if bar == nil {
		return fmt.Errorf("cannot update position state from a nil bar")
	}
	pos, err := m.positions.FindByID(ctx, positionID)
	if err != nil {
		return fmt.Errorf("failed to load position %d: %w", positionID, err)
	}
	if pos == nil {
		return fmt.Errorf("position %d: %w", positionID, ports.ErrNotFound)
	}
	if pos.CampaignID != campaignID {
		return fmt.Errorf("position %d does not belong to campaign %s", positionID, campaignID)
	}
	if !pos.IsOpen() {
		return fmt.Errorf("position %d: %w", positionID, ports.ErrPositionClosed)
	}
	if err := m.positions.UpdatePrice(ctx, positionID, bar.Close); err != nil {
		return fmt.Errorf("failed to update price for position %d: %w", positionID, err)
	}
	return nil
}

// HandleExit closes the position named by the exit signal. A signal without
// a time stamps the close with the current clock.
func (m *Manager) HandleExit(ctx context.Context, positionID int64, sig *domain.ExitSignal) error {
	if sig == nil {
		return fmt.Errorf("cannot handle a nil exit signal")
	}

	pos, err := m.positions.FindByID(ctx, positionID)
	if err != nil {
		return fmt.Errorf("failed to load position %d: %w", positionID, err)
	}
	if pos == nil {
		return fmt.Errorf("position %d: %w", positionID, ports.ErrNotFound)
	}
	if !pos.IsOpen() {
		return fmt.Errorf("position %d: %w", positionID, ports.ErrPositionClosed)
	}

	exitTime := sig.Time
	if exitTime.IsZero() {
		exitTime = m.now().UTC()
	}
	if err := m.positions.Close(ctx, positionID, sig.Price, exitTime, sig.Reason); err != nil {
		return fmt.Errorf("failed to close position %d: %w", positionID, err)
	}
	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID": positionID,
		"campaignID": pos.CampaignID,
		"reason":     string(sig.Reason),
		"exitPrice":  sig.Price.String(),
	})
	return nil
}
