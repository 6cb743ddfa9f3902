package strategy

import (
	"slot_watch/internal/domain"
	"slot_watch/internal/tracker"
)

// ActionType defines what the controller should do after an evaluation
type ActionType int

const (
	ActionNotify   ActionType = iota + 1
	ActionSnapshot            // send the cropped snapshot
	ActionCommit              // run the commit sequence (SEARCHING -> TRADING)
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionNotify:
		return "NOTIFY"
	case ActionSnapshot:
		return "SNAPSHOT"
	case ActionCommit:
		return "COMMIT"
	default:
		return "UNKNOWN"
	}
}

// Action represents a decision made by the strategy
type Action struct {
	Type ActionType
	Slot int
	Text string // message for ActionNotify
}

// Strategy turns tracker results into actions.
// It is called synchronously by the cycle controller.
type Strategy interface {
	// OnDecision is called after every evaluation, including DecisionNone.
	OnDecision(slot *domain.Slot, images bool, res tracker.Result) []Action
}
