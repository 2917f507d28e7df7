package pipeline

import (
	"context"
	"fmt"
	"time"

	"wyckoffEngine/internal/domain"
	"wyckoffEngine/internal/ports"
	"wyckoffEngine/internal/risk"
	"wyckoffEngine/internal/signal"
	"wyckoffEngine/internal/validation"
)

// Input is the immutable payload every stage receives. Stages must treat it
// as read-only; their outputs go into the shared Context.
type Input struct {
	Symbol    string
	Timeframe domain.Timeframe
	Bars      []*domain.Bar
}

// Context is the shared output surface stages write into. Fields are typed
// and named so a stage's consumers do not have to guess at map keys.
type Context struct {
	Patterns  []*domain.Pattern
	Signal    *signal.Signal
	Chain     *validation.Pipeline
	PreFlight *risk.PreFlightResult

	// Values carries ad-hoc outputs from externally supplied stages.
	Values map[string]interface{}
}

// Stage is one step of the analysis pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, input *Input, out *Context) error
}

// Report is the outcome of one pipeline run. Durations cover every stage
// that started, including a failed one.
type Report struct {
	Context     *Context
	Durations   map[string]time.Duration
	FailedStage string
}

// CoordinatorConfig configures the pipeline coordinator.
type CoordinatorConfig struct {
	Stages []Stage
	// ContinueOnError keeps running later stages after a failure. The
	// default halts on the first stage error and clears the final output.
	ContinueOnError bool
	Logger          ports.Logger
}

// Coordinator runs a fixed sequence of stages over one input, collecting
// per-stage timings. It holds no per-run state and is safe for concurrent
// runs.
type Coordinator struct {
	stages          []Stage
	continueOnError bool
	logger          ports.Logger
}

// NewCoordinator validates the stage list and constructs the coordinator.
// Stage names must be unique so timings and range selection are unambiguous.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("at least one pipeline stage is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for pipeline coordinator")
	}
	seen := make(map[string]struct{}, len(cfg.Stages))
	for _, s := range cfg.Stages {
		name := s.Name()
		if name == "" {
			return nil, fmt.Errorf("pipeline stage with empty name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate pipeline stage name %q", name)
		}
		seen[name] = struct{}{}
	}
	return &Coordinator{
		stages:          cfg.Stages,
		continueOnError: cfg.ContinueOnError,
		logger:          cfg.Logger,
	}, nil
}

// StageNames returns the configured stage names in execution order.
func (c *Coordinator) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every configured stage in order.
func (c *Coordinator) Run(ctx context.Context, input *Input) (*Report, error) {
	return c.run(ctx, input, c.stages)
}

// RunRange executes the contiguous subsequence of stages from the named
// first stage through the named last stage, inclusive. Both names must
// exist and appear in order.
func (c *Coordinator) RunRange(ctx context.Context, input *Input, first, last string) (*Report, error) {
	start, end := -1, -1
	for i, s := range c.stages {
		if s.Name() == first {
			start = i
		}
		if s.Name() == last {
			end = i
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("unknown pipeline stage %q", first)
	}
	if end < 0 {
		return nil, fmt.Errorf("unknown pipeline stage %q", last)
	}
	if start > end {
		return nil, fmt.Errorf("pipeline stage %q comes after %q", first, last)
	}
	return c.run(ctx, input, c.stages[start:end+1])
}

func (c *Coordinator) run(ctx context.Context, input *Input, stages []Stage) (*Report, error) {
	if input == nil {
		return nil, fmt.Errorf("pipeline input is required")
	}

	report := &Report{
		Context:   &Context{Values: make(map[string]interface{})},
		Durations: make(map[string]time.Duration, len(stages)),
	}
	var firstErr error

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline canceled before stage %q: %w", s.Name(), err)
		}

		started := time.Now()
		err := s.Run(ctx, input, report.Context)
		report.Durations[s.Name()] = time.Since(started)

		if err == nil {
			continue
		}
		c.logger.Error(ctx, err, "Pipeline stage failed", map[string]interface{}{
			"stage": s.Name(), "symbol": input.Symbol,
		})
		if report.FailedStage == "" {
			report.FailedStage = s.Name()
			firstErr = err
		}
		if !c.continueOnError {
			// A halted run produces no trustworthy output.
			report.Context = nil
			return report, fmt.Errorf("pipeline stage %q failed: %w", s.Name(), err)
		}
	}

	if firstErr != nil {
		return report, fmt.Errorf("pipeline stage %q failed: %w", report.FailedStage, firstErr)
	}
	return report, nil
}
