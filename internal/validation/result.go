package validation

import (
	"fmt"
	"time"
)

// Status is the outcome of one validation stage.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
)

// StageResult is the structured outcome of one validator. Business
// rejections travel as these values, never as errors.
type StageResult struct {
	Stage       string                 `json:"stage"`
	Status      Status                 `json:"status"`
	Reason      string                 `json:"reason,omitempty"` // Required for FAIL/WARN
	Warnings    []string               `json:"warnings,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ValidatorID string                 `json:"validator_id"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Pipeline aggregates stage results. Validity flips to false on the first
// FAIL and the rejection reason records that first failure; warnings from
// every stage are retained regardless of later failures.
type Pipeline struct {
	Results         []StageResult `json:"results"`
	IsValid         bool          `json:"is_valid"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// NewPipeline creates an empty, valid pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{IsValid: true}
}

// Add appends a stage result and updates the aggregate state.
func (p *Pipeline) Add(r StageResult) {
	p.Results = append(p.Results, r)
	if r.Status == StatusFail && p.IsValid {
		p.IsValid = false
		p.RejectionReason = fmt.Sprintf("%s: %s", r.Stage, r.Reason)
	}
}

// AllWarnings concatenates warnings from every stage in order, including
// stages that failed.
func (p *Pipeline) AllWarnings() []string {
	var warnings []string
	for _, r := range p.Results {
		warnings = append(warnings, r.Warnings...)
	}
	return warnings
}
