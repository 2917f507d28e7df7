package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/backtest"
	"wyckoffEngine/internal/campaign"
	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
	"wyckoffEngine/internal/risk"
	"wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/validation"
)

// Action is the outcome of processing one bar.
type Action string

const (
	ActionNone     Action = "none"     // No signal on this bar
	ActionRejected Action = "rejected" // Signal failed the validation chain
	ActionBlocked  Action = "blocked"  // Signal blocked by the execution gate
	ActionEntered  Action = "entered"  // Position opened
)

// Decision reports what the service did with one bar and carries the full
// evidence trail behind it.
type Decision struct {
	Action     Action
	Signal     *signal.Signal
	Chain      *validation.Pipeline
	PreFlight  *risk.PreFlightResult
	CampaignID string
	PositionID int64
	Exits      []*domain.ExitSignal
}

// Analysis is the per-bar market and account evidence the caller supplies:
// the current trading range structure and the portfolio exposure snapshot.
type Analysis struct {
	Range     *domain.TradingRange
	Portfolio risk.PortfolioState
}

// Config holds the service trading parameters.
type Config struct {
	Symbol          string
	Timeframe       domain.Timeframe
	RiskPerTradePct decimal.Decimal
	StopLossPct     decimal.Decimal // Fraction of entry price, (0, 1]
	TakeProfitPct   decimal.Decimal
	LookbackBars    int // Bar window retained for detection (default 200)
}

// Deps are the service collaborators.
type Deps struct {
	Detector  *signal.ValidatedDetector
	Chain     *validation.Chain
	Gate      *risk.Gate
	Manager   *campaign.Manager
	Positions ports.PositionRepository
	Logger    ports.Logger
}

// Service drives the live decision path: on every bar it marks open
// positions, evaluates structural exits, and runs any new candidate through
// detection, validation, and the execution gate before committing a position
// to the campaign.
type Service struct {
	cfg       Config
	detector  *signal.ValidatedDetector
	chain     *validation.Chain
	gate      *risk.Gate
	manager   *campaign.Manager
	positions ports.PositionRepository
	processor *backtest.BarProcessor
	logger    ports.Logger

	bars    []*domain.Bar
	history []domain.PatternType // Pattern types seen in the current campaign
	lastBar time.Time
}

// AnalysisFunc supplies the per-bar analysis snapshot during a polling run.
type AnalysisFunc func(ctx context.Context, bar *domain.Bar) (Analysis, error)

// NewService validates the configuration and constructs the service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if cfg.RiskPerTradePct.Sign() <= 0 {
		return nil, fmt.Errorf("risk per trade must be positive, got %s", cfg.RiskPerTradePct)
	}
	if cfg.LookbackBars <= 0 {
		cfg.LookbackBars = 200
	}
	if deps.Detector == nil || deps.Chain == nil || deps.Gate == nil || deps.Manager == nil {
		return nil, fmt.Errorf("detector, chain, gate and manager are all required")
	}
	if deps.Positions == nil {
		return nil, fmt.Errorf("position repository is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	processor, err := backtest.NewBarProcessor(backtest.ProcessorConfig{
		StopLossPct:   cfg.StopLossPct,
		TakeProfitPct: cfg.TakeProfitPct,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build bar processor: %w", err)
	}

	return &Service{
		cfg:       cfg,
		detector:  deps.Detector,
		chain:     deps.Chain,
		gate:      deps.Gate,
		manager:   deps.Manager,
		positions: deps.Positions,
		processor: processor,
		logger:    deps.Logger,
	}, nil
}

// OnBar processes one closed bar. Not safe for concurrent use; the caller
// feeds bars in order.
func (s *Service) OnBar(ctx context.Context, bar *domain.Bar, analysis Analysis) (*Decision, error) {
	if bar == nil {
		return nil, fmt.Errorf("cannot process a nil bar")
	}
	s.appendBar(bar)

	decision := &Decision{Action: ActionNone}

	camp, err := s.manager.OpenCampaign(ctx, s.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open campaign: %w", err)
	}
	if camp != nil {
		decision.CampaignID = camp.ID
		if err := s.markAndExit(ctx, bar, camp.ID, analysis, decision); err != nil {
			return nil, err
		}
	} else {
		s.history = nil
	}

	sig, err := s.detector.Detect(ctx, s.bars, len(s.bars)-1)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if sig == nil {
		return decision, nil
	}
	decision.Signal = sig

	camp, err = s.manager.RecordPattern(ctx, sig.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to record pattern in campaign: %w", err)
	}
	decision.CampaignID = camp.ID

	vc := &validation.Context{
		Pattern:   sig.Pattern,
		Symbol:    s.cfg.Symbol,
		Timeframe: s.cfg.Timeframe,
		Volume:    sig.Volume,
		Phase:     sig.Pattern.Phase,
		Range:     analysis.Range,
		History:   s.history,
		Portfolio: &validation.PortfolioContext{
			AccountEquity:   analysis.Portfolio.AccountEquity,
			RiskPerTradePct: s.cfg.RiskPerTradePct,
		},
	}
	decision.Chain = s.chain.Run(ctx, vc)
	s.history = append(s.history, sig.Pattern.Type)

	if !decision.Chain.IsValid {
		decision.Action = ActionRejected
		return decision, nil
	}

	preflight := s.gate.Check(ctx, risk.TradeProposal{
		Symbol:  s.cfg.Symbol,
		RiskPct: s.cfg.RiskPerTradePct,
	}, analysis.Portfolio)
	decision.PreFlight = &preflight
	if !preflight.Passed {
		decision.Action = ActionBlocked
		return decision, nil
	}

	posID, err := s.enter(ctx, bar, camp, analysis)
	if err != nil {
		return nil, err
	}
	decision.Action = ActionEntered
	decision.PositionID = posID
	return decision, nil
}

// markAndExit marks every open campaign position to the bar close, then
// closes any position the processor flags against its stop or target.
func (s *Service) markAndExit(ctx context.Context, bar *domain.Bar, campaignID string, analysis Analysis, decision *Decision) error {
	if err := s.manager.UpdatePositionPrices(ctx, campaignID, bar.Close); err != nil {
		return err
	}
	open, err := s.positions.FindOpenByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load open positions: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	_, exits := s.processor.ProcessBar(ctx, bar, open, analysis.Portfolio.AccountEquity)
	for i, sig := range exits {
		if sig == nil {
			continue
		}
		for _, pos := range open {
			if pos.Symbol == sig.Symbol && pos.IsOpen() {
				if err := s.manager.HandleExit(ctx, pos.ID, sig); err != nil {
					return err
				}
				pos.Status = domain.StatusClosed
				break
			}
		}
		decision.Exits = append(decision.Exits, exits[i])
	}
	return nil
}

// enter opens a position sized off the configured stop distance and risk
// budget, then promotes a FORMING campaign to ACTIVE.
func (s *Service) enter(ctx context.Context, bar *domain.Bar, camp *domain.Campaign, analysis Analysis) (int64, error) {
	entry := bar.Close
	stop := entry.Mul(decimal.NewFromInt(1).Sub(s.cfg.StopLossPct))
	target := entry.Mul(decimal.NewFromInt(1).Add(s.cfg.TakeProfitPct))

	stopDistance := entry.Sub(stop)
	if stopDistance.Sign() <= 0 {
		return 0, fmt.Errorf("stop distance is not positive at entry %s", entry)
	}
	riskAmount := analysis.Portfolio.AccountEquity.Mul(s.cfg.RiskPerTradePct).Div(decimal.NewFromInt(100))
	quantity := riskAmount.Div(stopDistance)
	if quantity.Sign() <= 0 {
		return 0, fmt.Errorf("sized quantity is not positive")
	}

	pos := &domain.Position{
		CampaignID:   camp.ID,
		Symbol:       s.cfg.Symbol,
		Side:         domain.Long,
		Quantity:     quantity,
		EntryPrice:   entry,
		CurrentPrice: entry,
		StopLoss:     stop,
		TakeProfit:   target,
		EntryTime:    bar.Timestamp,
		Status:       domain.StatusOpen,
	}
	id, err := s.positions.Create(ctx, pos)
	if err != nil {
		return 0, fmt.Errorf("failed to persist position: %w", err)
	}

	if camp.State == domain.CampaignForming {
		if err := s.manager.Transition(ctx, camp.ID, domain.CampaignActive); err != nil {
			return 0, err
		}
	}
	s.logger.Info(ctx, "Position entered", map[string]interface{}{
		"positionID": id,
		"campaignID": camp.ID,
		"entry":      entry.String(),
		"stop":       stop.String(),
		"target":     target.String(),
		"quantity":   quantity.String(),
	})
	return id, nil
}

// appendBar maintains the rolling detection window.
func (s *Service) appendBar(bar *domain.Bar) {
	s.bars = append(s.bars, bar)
	if max := s.cfg.LookbackBars * 2; len(s.bars) > max {
		s.bars = s.bars[len(s.bars)-max:]
	}
}

// Run polls the provider once per bar interval and feeds the latest closed
// bar through OnBar. It returns only when the context is canceled; transient
// provider failures are logged and retried on the next interval.
func (s *Service) Run(ctx context.Context, provider ports.BarProvider, interval time.Duration, analyze AnalysisFunc) error {
	if provider == nil {
		return fmt.Errorf("bar provider is required")
	}
	if analyze == nil {
		return fmt.Errorf("analysis func is required")
	}
	s.logger.Info(ctx, "Live service started", map[string]interface{}{
		"symbol": s.cfg.Symbol, "timeframe": string(s.cfg.Timeframe), "interval": interval.String(),
	})

	for {
		if err := waitUntilNextBar(ctx, interval); err != nil {
			return err
		}

		bars, err := provider.GetBars(ctx, s.cfg.Symbol, s.cfg.Timeframe, 0, 0, 2)
		if err != nil {
			s.logger.Warn(ctx, "Bar fetch failed, will retry next interval", map[string]interface{}{
				"symbol": s.cfg.Symbol, "error": err.Error(),
			})
			continue
		}
		if len(bars) < 2 {
			continue
		}
		// The last element is the still-forming bar; act on the closed one.
		bar := bars[len(bars)-2]
		if !bar.Timestamp.After(s.lastBar) {
			continue
		}
		s.lastBar = bar.Timestamp

		analysis, err := analyze(ctx, bar)
		if err != nil {
			s.logger.Error(ctx, err, "Analysis snapshot failed, skipping bar", map[string]interface{}{
				"symbol": s.cfg.Symbol,
			})
			continue
		}
		decision, err := s.OnBar(ctx, bar, analysis)
		if err != nil {
			s.logger.Error(ctx, err, "Bar processing failed", map[string]interface{}{
				"symbol": s.cfg.Symbol,
			})
			continue
		}
		if decision.Action != ActionNone {
			s.logger.Info(ctx, "Decision", map[string]interface{}{
				"action":     string(decision.Action),
				"campaignID": decision.CampaignID,
			})
		}
	}
}

// waitUntilNextBar sleeps through the remainder of the current bar interval.
// Used by pollers that drive OnBar off a REST feed.
func waitUntilNextBar(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("bar interval must be positive")
	}
	now := time.Now()
	next := now.Truncate(interval).Add(interval)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(next.Sub(now)):
		return nil
	}
}
