// Package tracker evaluates slot observations against their target windows
// and decides which transitions are worth a notification.
package tracker

import "slot_watch/internal/domain"

// Policy holds the deployment-level tracking switches.
type Policy struct {
	// NotifyOnChange reports any change of a previously observed value as
	// DecisionUpdated, regardless of window membership.
	NotifyOnChange bool
}

// Result is the outcome of one evaluation.
type Result struct {
	Decision domain.Decision
	Previous domain.Observation // last_value before this observation
	Current  domain.Observation
}

// Tracker is stateless apart from its policy; all history lives on the slots.
type Tracker struct {
	policy Policy
}

// New creates a tracker with the given policy.
func New(policy Policy) *Tracker {
	return &Tracker{policy: policy}
}

// Evaluate applies obs to slot and returns the decision.
//
// Empty observations change nothing. A qualifying value is reported as
// Entered unless it equals the value already notified while the slot is
// still marked found. Leaving the target is reported only for found slots.
// LastValue follows every non-empty observation.
func (t *Tracker) Evaluate(slot *domain.Slot, obs domain.Observation) Result {
	res := Result{Previous: slot.LastValue, Current: obs}
	if obs.IsEmpty() {
		return res
	}

	qualifies := slot.Qualifies(obs)
	switch {
	case qualifies && (!slot.Found || !slot.LastNotified.Equal(obs)):
		res.Decision = domain.DecisionEntered
		slot.Found = true
		slot.LastNotified = obs
	case !qualifies && slot.Found:
		res.Decision = domain.DecisionLeft
		slot.Found = false
	case t.policy.NotifyOnChange && !res.Previous.IsEmpty() && !res.Previous.Equal(obs):
		res.Decision = domain.DecisionUpdated
	}

	slot.LastValue = obs
	return res
}
