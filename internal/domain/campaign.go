package domain

import (
	"fmt"
	"time"
)

// CampaignState is the lifecycle state of a Wyckoff campaign.
type CampaignState string

const (
	CampaignForming   CampaignState = "FORMING"
	CampaignActive    CampaignState = "ACTIVE"
	CampaignDormant   CampaignState = "DORMANT"
	CampaignCompleted CampaignState = "COMPLETED"
	CampaignFailed    CampaignState = "FAILED"
	CampaignCancelled CampaignState = "CANCELLED"
)

// allowedTransitions encodes the campaign state machine. Terminal states
// have no outgoing edges.
var allowedTransitions = map[CampaignState][]CampaignState{
	CampaignForming: {CampaignActive, CampaignCancelled, CampaignFailed},
	CampaignActive:  {CampaignCompleted, CampaignFailed, CampaignCancelled, CampaignDormant},
	CampaignDormant: {CampaignActive, CampaignFailed, CampaignCancelled},
}

// IsTerminal reports whether the state accepts no further transitions.
func (s CampaignState) IsTerminal() bool {
	switch s {
	case CampaignCompleted, CampaignFailed, CampaignCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to target is legal.
func (s CampaignState) CanTransitionTo(target CampaignState) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Campaign tracks one accumulation/distribution cycle on a symbol: the
// ordered patterns seen so far, the current Wyckoff phase, and the lifecycle
// state. A campaign becomes immutable once it reaches a terminal state.
type Campaign struct {
	ID         string        // UUID
	Symbol     string        // Trading symbol
	State      CampaignState // Lifecycle state
	Phase      WyckoffPhase  // Current Wyckoff phase
	PatternIDs []string      // Ordered references to detected patterns
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transition moves the campaign to the target state, rejecting illegal
// transitions and any transition out of a terminal state.
func (c *Campaign) Transition(target CampaignState, now time.Time) error {
	if c.State.IsTerminal() {
		return fmt.Errorf("campaign %s is in terminal state %s and cannot transition to %s", c.ID, c.State, target)
	}
	if !c.State.CanTransitionTo(target) {
		return fmt.Errorf("campaign %s: illegal transition %s -> %s", c.ID, c.State, target)
	}
	c.State = target
	c.UpdatedAt = now
	return nil
}

// RecordPattern appends a pattern reference and updates the phase.
func (c *Campaign) RecordPattern(patternID string, phase WyckoffPhase, now time.Time) error {
	if c.State.IsTerminal() {
		return fmt.Errorf("campaign %s is in terminal state %s and cannot record patterns", c.ID, c.State)
	}
	c.PatternIDs = append(c.PatternIDs, patternID)
	c.Phase = phase
	c.UpdatedAt = now
	return nil
}
