package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionRepository and ports.CampaignRepository
// using SQLite. All monetary values are stored as TEXT and round-trip through
// decimal exactly; REAL columns would silently corrupt them.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens the database, verifies the connection, and ensures the
// schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/wyckoff_engine.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		state TEXT NOT NULL,
		phase TEXT NOT NULL,
		pattern_ids TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		current_price TEXT NOT NULL,
		stop_loss TEXT NOT NULL,
		take_profit TEXT NOT NULL,
		exit_price TEXT DEFAULT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		status TEXT NOT NULL,
		exit_reason TEXT DEFAULT NULL,
		unrealized_pnl TEXT NOT NULL DEFAULT '0',
		realized_pnl TEXT DEFAULT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_symbol_state ON campaigns (symbol, state);
	CREATE INDEX IF NOT EXISTS idx_positions_campaign_status ON positions (campaign_id, status);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new position and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (campaign_id, symbol, side, quantity, entry_price, current_price,
	                       stop_loss, take_profit, entry_time, status, unrealized_pnl)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.CampaignID, pos.Symbol, string(pos.Side), pos.Quantity.String(), pos.EntryPrice.String(),
		pos.CurrentPrice.String(), pos.StopLoss.String(), pos.TakeProfit.String(),
		pos.EntryTime, string(pos.Status), pos.UnrealizedPNL.String())
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for symbol %s: %w", pos.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Symbol, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "campaignID": pos.CampaignID})
	return id, nil
}

// Update modifies an existing position based on its ID.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET quantity = ?, entry_price = ?, current_price = ?, stop_loss = ?, take_profit = ?,
	    exit_price = ?, entry_time = ?, exit_time = ?, status = ?, exit_reason = ?,
	    unrealized_pnl = ?, realized_pnl = ?
	WHERE id = ?`

	var exitTime sql.NullTime
	if !pos.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: pos.ExitTime, Valid: true}
	}
	var exitPrice, realizedPNL, exitReason interface{}
	if pos.Status == domain.StatusClosed {
		exitPrice = pos.ExitPrice.String()
		realizedPNL = pos.RealizedPNL.String()
		exitReason = string(pos.ExitReason)
	}

	result, err := r.db.ExecContext(ctx, query,
		pos.Quantity.String(), pos.EntryPrice.String(), pos.CurrentPrice.String(),
		pos.StopLoss.String(), pos.TakeProfit.String(), exitPrice,
		pos.EntryTime, exitTime, string(pos.Status), exitReason,
		pos.UnrealizedPNL.String(), realizedPNL, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update position ID %d: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	return nil
}

const positionColumns = `
	id, campaign_id, symbol, side, quantity, entry_price, current_price,
	stop_loss, take_profit, COALESCE(exit_price, '0'), entry_time, exit_time,
	status, COALESCE(exit_reason, ''), unrealized_pnl, COALESCE(realized_pnl, '0')`

// FindByID retrieves a position by its unique ID. Returns nil, nil if not found.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Position, error) {
	query := `SELECT` + positionColumns + ` FROM positions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position by ID %d: %w", id, err)
	}
	return pos, nil
}

// FindOpenByCampaign retrieves all open positions for a campaign, oldest first.
func (r *Repository) FindOpenByCampaign(ctx context.Context, campaignID string) ([]*domain.Position, error) {
	query := `SELECT` + positionColumns + ` FROM positions WHERE campaign_id = ? AND status = ? ORDER BY entry_time ASC`
	rows, err := r.db.QueryContext(ctx, query, campaignID, string(domain.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions for campaign %s: %w", campaignID, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position for campaign %s: %w", campaignID, err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// UpdatePrice sets the current price of an open position and recomputes its
// unrealized P&L.
func (r *Repository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	return r.UpdatePrices(ctx, map[int64]decimal.Decimal{id: price})
}

// UpdatePrices applies many price updates in one transaction. Closed
// positions are left untouched.
func (r *Repository) UpdatePrices(ctx context.Context, prices map[int64]decimal.Decimal) error {
	if len(prices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price update transaction: %w", err)
	}
	defer tx.Rollback()

	for id, price := range prices {
		query := `SELECT` + positionColumns + ` FROM positions WHERE id = ?`
		pos, err := scanPosition(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("position ID %d not found for price update: %w", id, ports.ErrNotFound)
			}
			return fmt.Errorf("failed to load position ID %d for price update: %w", id, err)
		}
		if !pos.IsOpen() {
			continue
		}

		unrealized := pos.MarkPrice(price)
		const update = `UPDATE positions SET current_price = ?, unrealized_pnl = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, update, price.String(), unrealized.String(), id); err != nil {
			return fmt.Errorf("failed to update price for position ID %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price updates: %w", err)
	}
	return nil
}

// ClosePosition closes an open position, computing realized P&L exactly
// once. Closing an already-closed position is an error.
func (r *Repository) ClosePosition(ctx context.Context, id int64, exitPrice decimal.Decimal, exitTime time.Time, reason domain.ExitReason) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT` + positionColumns + ` FROM positions WHERE id = ?`
	pos, err := scanPosition(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("position ID %d not found for close: %w", id, ports.ErrNotFound)
		}
		return fmt.Errorf("failed to load position ID %d for close: %w", id, err)
	}
	if !pos.IsOpen() {
		return fmt.Errorf("position ID %d: %w", id, ports.ErrPositionClosed)
	}

	realized := pos.MarkPrice(exitPrice)
	const update = `
	UPDATE positions
	SET status = ?, exit_price = ?, exit_time = ?, exit_reason = ?,
	    current_price = ?, unrealized_pnl = '0', realized_pnl = ?
	WHERE id = ?`
	if _, err := tx.ExecContext(ctx, update,
		string(domain.StatusClosed), exitPrice.String(), exitTime, string(reason),
		exitPrice.String(), realized.String(), id); err != nil {
		return fmt.Errorf("failed to close position ID %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit close for position ID %d: %w", id, err)
	}
	r.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"positionID": id, "reason": string(reason), "realizedPNL": realized.String(),
	})
	return nil
}

// --- CampaignRepository Implementation ---

// CreateCampaign saves a new campaign.
func (r *Repository) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	patternIDs, err := json.Marshal(c.PatternIDs)
	if err != nil {
		return fmt.Errorf("failed to encode pattern IDs for campaign %s: %w", c.ID, err)
	}
	const query = `
	INSERT INTO campaigns (id, symbol, state, phase, pattern_ids, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.Symbol, string(c.State), string(c.Phase), string(patternIDs), c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert campaign %s: %w", c.ID, err)
	}
	r.logger.Debug(ctx, "Campaign created", map[string]interface{}{"campaignID": c.ID, "symbol": c.Symbol})
	return nil
}

// UpdateCampaign persists campaign mutations.
func (r *Repository) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	patternIDs, err := json.Marshal(c.PatternIDs)
	if err != nil {
		return fmt.Errorf("failed to encode pattern IDs for campaign %s: %w", c.ID, err)
	}
	const query = `
	UPDATE campaigns SET state = ?, phase = ?, pattern_ids = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		string(c.State), string(c.Phase), string(patternIDs), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update campaign %s: %w", c.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for campaign %s: %w", c.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("campaign %s not found for update: %w", c.ID, ports.ErrNotFound)
	}
	return nil
}

// FindCampaignByID retrieves a campaign by ID. Returns nil, nil if not found.
func (r *Repository) FindCampaignByID(ctx context.Context, id string) (*domain.Campaign, error) {
	const query = `
	SELECT id, symbol, state, phase, pattern_ids, created_at, updated_at
	FROM campaigns WHERE id = ?`
	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query campaign %s: %w", id, err)
	}
	return c, nil
}

// FindOpenCampaignBySymbol retrieves the non-terminal campaign for a symbol,
// if any. Returns nil, nil if none exists.
func (r *Repository) FindOpenCampaignBySymbol(ctx context.Context, symbol string) (*domain.Campaign, error) {
	const query = `
	SELECT id, symbol, state, phase, pattern_ids, created_at, updated_at
	FROM campaigns
	WHERE symbol = ? AND state IN (?, ?, ?)
	ORDER BY created_at DESC LIMIT 1`
	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, symbol,
		string(domain.CampaignForming), string(domain.CampaignActive), string(domain.CampaignDormant)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open campaign for symbol %s: %w", symbol, err)
	}
	return c, nil
}

// --- Port Views ---
//
// The two repository ports both declare Create, Update, and FindByID with
// different signatures, so one struct cannot satisfy both. These thin views
// adapt the shared store to each port.

// Positions returns the store as a ports.PositionRepository.
func (r *Repository) Positions() ports.PositionRepository { return positionStore{r} }

// Campaigns returns the store as a ports.CampaignRepository.
func (r *Repository) Campaigns() ports.CampaignRepository { return campaignStore{r} }

type positionStore struct{ *Repository }

func (s positionStore) Close(ctx context.Context, id int64, exitPrice decimal.Decimal, exitTime time.Time, reason domain.ExitReason) error {
	return s.ClosePosition(ctx, id, exitPrice, exitTime, reason)
}

type campaignStore struct{ *Repository }

func (s campaignStore) Create(ctx context.Context, c *domain.Campaign) error {
	return s.CreateCampaign(ctx, c)
}

func (s campaignStore) Update(ctx context.Context, c *domain.Campaign) error {
	return s.UpdateCampaign(ctx, c)
}

func (s campaignStore) FindByID(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.FindCampaignByID(ctx, id)
}

func (s campaignStore) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Campaign, error) {
	return s.FindOpenCampaignBySymbol(ctx, symbol)
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position, decoding TEXT decimals.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var side, status, exitReason string
	var quantity, entryPrice, currentPrice, stopLoss, takeProfit, exitPrice, unrealized, realized string
	var exitTime sql.NullTime

	err := s.Scan(
		&p.ID, &p.CampaignID, &p.Symbol, &side, &quantity, &entryPrice, &currentPrice,
		&stopLoss, &takeProfit, &exitPrice, &p.EntryTime, &exitTime,
		&status, &exitReason, &unrealized, &realized)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		p.ExitTime = exitTime.Time
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	p.ExitReason = domain.ExitReason(exitReason)

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.Quantity, quantity}, {&p.EntryPrice, entryPrice}, {&p.CurrentPrice, currentPrice},
		{&p.StopLoss, stopLoss}, {&p.TakeProfit, takeProfit}, {&p.ExitPrice, exitPrice},
		{&p.UnrealizedPNL, unrealized}, {&p.RealizedPNL, realized},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("corrupt decimal %q in position %d: %w", f.src, p.ID, err)
		}
		*f.dst = d
	}
	return p, nil
}

// scanCampaign scans a row into a domain.Campaign.
func scanCampaign(s scanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var state, phase, patternIDs string
	err := s.Scan(&c.ID, &c.Symbol, &state, &phase, &patternIDs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.State = domain.CampaignState(state)
	c.Phase = domain.WyckoffPhase(phase)
	if err := json.Unmarshal([]byte(patternIDs), &c.PatternIDs); err != nil {
		return nil, fmt.Errorf("corrupt pattern ID list in campaign %s: %w", c.ID, err)
	}
	return c, nil
}
