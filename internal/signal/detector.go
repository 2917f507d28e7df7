package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
	"wyckoffEngine/internal/validation"
)

// Signal is a pattern candidate that survived the synchronous volume and
// phase gates, carrying its own validation audit trail.
type Signal struct {
	ID        string               `json:"id"`
	Pattern   *domain.Pattern      `json:"pattern"`
	Volume    *validation.VolumeAnalysis `json:"volume,omitempty"`
	Chain     *validation.Pipeline `json:"chain"`
	CreatedAt time.Time            `json:"created_at"`
}

// AuditSink records stage results into the signal's audit trail. Writes are
// best-effort: a sink failure must never change an accept/reject outcome.
type AuditSink interface {
	Record(ctx context.Context, signalID string, result validation.StageResult) error
}

// DetectorConfig parameterizes the validated detector.
type DetectorConfig struct {
	LookbackBars int // Baseline volume window, excluding the current bar (default 20)
}

// ValidatedDetector decorates any pattern detector with the same volume and
// phase rule tables the validation chain applies, so live detection and
// backtest replay are governed by one set of rules.
type ValidatedDetector struct {
	inner  ports.PatternDetector
	cfg    DetectorConfig
	audit  AuditSink // Optional
	logger ports.Logger
}

// NewValidatedDetector constructs the decorator. The audit sink is optional.
func NewValidatedDetector(inner ports.PatternDetector, cfg DetectorConfig, audit AuditSink, logger ports.Logger) (*ValidatedDetector, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner pattern detector is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for validated detector")
	}
	if cfg.LookbackBars < 0 {
		return nil, fmt.Errorf("lookback bars cannot be negative, got %d", cfg.LookbackBars)
	}
	if cfg.LookbackBars == 0 {
		cfg.LookbackBars = 20
	}
	return &ValidatedDetector{inner: inner, cfg: cfg, audit: audit, logger: logger}, nil
}

// Detect runs the wrapped detector and gates any candidate through the
// volume and phase rules. A candidate without a volume baseline is rejected
// outright: there is nothing to validate against.
func (d *ValidatedDetector) Detect(ctx context.Context, bars []*domain.Bar, index int) (*Signal, error) {
	pattern, err := d.inner.Detect(ctx, bars, index)
	if err != nil {
		return nil, fmt.Errorf("inner detector failed at index %d: %w", index, err)
	}
	if pattern == nil {
		return nil, nil
	}

	sig := &Signal{
		ID:        uuid.NewString(),
		Pattern:   pattern,
		Chain:     validation.NewPipeline(),
		CreatedAt: time.Now().UTC(),
	}

	vol, ok := d.volumeBaseline(bars, index)
	if !ok {
		result := validation.StageResult{
			Stage:       validation.VolumeValidator{}.StageName(),
			Status:      validation.StatusFail,
			Reason:      "no volume baseline available",
			ValidatorID: validation.VolumeValidator{}.ValidatorID(),
			Timestamp:   time.Now().UTC(),
		}
		sig.Chain.Add(result)
		d.record(ctx, sig.ID, result)
		d.logger.Info(ctx, "Candidate rejected: no volume baseline", map[string]interface{}{
			"pattern": string(pattern.Type), "index": index,
		})
		return nil, nil
	}
	sig.Volume = vol

	vc := &validation.Context{
		Pattern:   pattern,
		Symbol:    pattern.Symbol,
		Timeframe: pattern.Timeframe,
		Volume:    vol,
		Phase:     pattern.Phase,
	}
	for _, v := range []validation.Validator{validation.VolumeValidator{}, validation.PhaseValidator{}} {
		result := v.Validate(ctx, vc)
		sig.Chain.Add(result)
		d.record(ctx, sig.ID, result)
	}

	if !sig.Chain.IsValid {
		d.logger.Info(ctx, "Candidate rejected by signal gates", map[string]interface{}{
			"pattern":   string(pattern.Type),
			"rejection": sig.Chain.RejectionReason,
		})
		return nil, nil
	}
	return sig, nil
}

// volumeBaseline averages the lookback window ending just before index.
// The current bar is excluded: the candidate must be judged against what
// came before it.
func (d *ValidatedDetector) volumeBaseline(bars []*domain.Bar, index int) (*validation.VolumeAnalysis, bool) {
	start := index - d.cfg.LookbackBars
	if start < 0 {
		start = 0
	}
	window := bars[start:index]
	if len(window) == 0 {
		return nil, false
	}

	sum := decimal.Zero
	for _, b := range window {
		sum = sum.Add(decimal.NewFromInt(b.Volume))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(window))))
	if avg.Sign() <= 0 {
		return nil, false
	}

	bar := bars[index]
	return &validation.VolumeAnalysis{
		Ratio:         decimal.NewFromInt(bar.Volume).Div(avg),
		AverageVolume: avg,
		BaselineBars:  len(window),
		ClosePosition: bar.ClosePosition(),
	}, true
}

// PatternDetector exposes the validated detector through the plain pattern
// detector port. Code that consumes ports.PatternDetector, the backtest
// engine included, then replays the same volume and phase gates as the live
// path; a rejected candidate surfaces as no pattern.
func (d *ValidatedDetector) PatternDetector() ports.PatternDetector {
	return patternPort{d: d}
}

type patternPort struct {
	d *ValidatedDetector
}

func (p patternPort) Detect(ctx context.Context, bars []*domain.Bar, index int) (*domain.Pattern, error) {
	sig, err := p.d.Detect(ctx, bars, index)
	if err != nil || sig == nil {
		return nil, err
	}
	return sig.Pattern, nil
}

// record writes one audit entry. A sink failure is logged and swallowed;
// the audit trail never decides a trade.
func (d *ValidatedDetector) record(ctx context.Context, signalID string, result validation.StageResult) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(ctx, signalID, result); err != nil {
		d.logger.Warn(ctx, "Audit trail write failed", map[string]interface{}{
			"signalID": signalID, "stage": result.Stage, "error": err.Error(),
		})
	}
}
