package strategy

import (
	"fmt"

	"slot_watch/internal/domain"
	"slot_watch/internal/tracker"
)

// ThresholdStrategy notifies on window crossings and, when Commit is set,
// asks the controller to act on every entry.
type ThresholdStrategy struct {
	commit bool
}

// NewThresholdStrategy creates a notify-only strategy, or a committing one.
func NewThresholdStrategy(commit bool) *ThresholdStrategy {
	return &ThresholdStrategy{commit: commit}
}

// OnDecision maps one tracker result to actions.
func (s *ThresholdStrategy) OnDecision(slot *domain.Slot, images bool, res tracker.Result) []Action {
	var actions []Action
	switch res.Decision {
	case domain.DecisionEntered:
		if images {
			actions = append(actions, Action{Type: ActionSnapshot, Slot: slot.Index})
		}
		actions = append(actions, Action{
			Type: ActionNotify,
			Slot: slot.Index,
			Text: fmt.Sprintf("%s is at %s, inside the target range %s.", slot.Label, res.Current, slot.Target()),
		})
		if s.commit {
			actions = append(actions, Action{Type: ActionCommit, Slot: slot.Index})
		}
	case domain.DecisionLeft:
		actions = append(actions, Action{
			Type: ActionNotify,
			Slot: slot.Index,
			Text: fmt.Sprintf("%s is at %s, outside the target range %s.", slot.Label, res.Current, slot.Target()),
		})
	case domain.DecisionUpdated:
		actions = append(actions, Action{
			Type: ActionNotify,
			Slot: slot.Index,
			Text: fmt.Sprintf("%s changed from %s to %s.", slot.Label, res.Previous, res.Current),
		})
	}
	return actions
}
