package validation

import (
	"context"
	"time"
)

// Validator is the contract every stage implements. Validate never returns
// an error: business outcomes are StageResult values, and only programmer
// errors may panic.
type Validator interface {
	ValidatorID() string
	StageName() string
	Validate(ctx context.Context, vc *Context) StageResult
}

// newResult stamps stage name, validator id, and timestamp so concrete
// stages only decide status, reason, and metadata.
func newResult(v Validator, status Status, reason string, metadata map[string]interface{}) StageResult {
	r := StageResult{
		Stage:       v.StageName(),
		Status:      status,
		Reason:      reason,
		Metadata:    metadata,
		ValidatorID: v.ValidatorID(),
		Timestamp:   time.Now().UTC(),
	}
	if status == StatusWarn && reason != "" {
		r.Warnings = []string{reason}
	}
	return r
}

func pass(v Validator, metadata map[string]interface{}) StageResult {
	return newResult(v, StatusPass, "", metadata)
}

func fail(v Validator, reason string, metadata map[string]interface{}) StageResult {
	return newResult(v, StatusFail, reason, metadata)
}

func warn(v Validator, reason string, metadata map[string]interface{}) StageResult {
	return newResult(v, StatusWarn, reason, metadata)
}
