package domain

import "sync"

// RunState is the cycle controller state.
type RunState string

const (
	StateInitializing RunState = "INITIALIZING"
	StateSearching    RunState = "SEARCHING"
	StateTrading      RunState = "TRADING"
	StateBacktracking RunState = "BACKTRACKING"
	StateStopped      RunState = "STOPPED"
)

// edges lists every transition the controller may take on its own.
// Any state may additionally move to STOPPED.
var edges = map[RunState][]RunState{
	StateInitializing: {StateSearching},
	StateSearching:    {StateSearching, StateTrading},
	StateTrading:      {StateBacktracking},
	StateBacktracking: {StateSearching},
}

// IsValid reports whether s is one of the five defined states.
func (s RunState) IsValid() bool {
	switch s {
	case StateInitializing, StateSearching, StateTrading, StateBacktracking, StateStopped:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to RunState) bool {
	if from == StateStopped {
		return false
	}
	if to == StateStopped {
		return true
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateCell holds the run state shared with an external supervisor.
// Every read-modify-write happens under the mutex so observers never see a
// half-applied transition.
type StateCell struct {
	mu    sync.Mutex
	state RunState
}

// NewStateCell creates a cell in INITIALIZING.
func NewStateCell() *StateCell {
	return &StateCell{state: StateInitializing}
}

// Load returns the current state.
func (c *StateCell) Load() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition moves from -> to if the cell still holds from and the edge is legal.
func (c *StateCell) Transition(from, to RunState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from || !CanTransition(from, to) {
		return false
	}
	c.state = to
	return true
}

// Force is the supervisor write. It accepts any defined state but never
// leaves STOPPED.
func (c *StateCell) Force(s RunState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !s.IsValid() || c.state == StateStopped {
		return false
	}
	c.state = s
	return true
}

// Stop sets STOPPED and returns the previous state.
func (c *StateCell) Stop() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = StateStopped
	return prev
}

// Stopped reports whether the cell reached its terminal state.
func (c *StateCell) Stopped() bool {
	return c.Load() == StateStopped
}
