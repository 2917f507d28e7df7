package validation

import (
	"context"
	"fmt"

	"wyckoffEngine/internal/ports"
)

// Chain runs the validation stages in their fixed order: Volume, Phase,
// Levels, Risk, Strategy. The order must not change; later stages may
// assume earlier passes. Every stage runs even after a failure so the
// pipeline carries the complete warning set for diagnostics.
type Chain struct {
	validators []Validator
	logger     ports.Logger
}

// NewChain constructs the standard five-stage chain.
func NewChain(logger ports.Logger) (*Chain, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for validation chain")
	}
	return &Chain{
		validators: []Validator{
			VolumeValidator{},
			PhaseValidator{},
			LevelsValidator{},
			RiskValidator{},
			StrategyValidator{},
		},
		logger: logger,
	}, nil
}

// Validators exposes the configured stages in execution order.
func (c *Chain) Validators() []Validator {
	return c.validators
}

// Run executes every stage against the shared read-only context and
// aggregates the results.
func (c *Chain) Run(ctx context.Context, vc *Context) *Pipeline {
	pipeline := NewPipeline()
	for _, v := range c.validators {
		result := v.Validate(ctx, vc)
		pipeline.Add(result)

		fields := map[string]interface{}{
			"stage":  result.Stage,
			"status": string(result.Status),
		}
		if result.Reason != "" {
			fields["reason"] = result.Reason
		}
		c.logger.Debug(ctx, "Validation stage evaluated", fields)
	}

	if !pipeline.IsValid {
		c.logger.Info(ctx, "Candidate rejected by validation chain", map[string]interface{}{
			"rejection": pipeline.RejectionReason,
			"warnings":  len(pipeline.AllWarnings()),
		})
	}
	return pipeline
}
