package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/event"
)

// SlotView is the supervisor's copy of one slot.
type SlotView struct {
	Index     int       `json:"index"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Window    string    `json:"window"`
	Value     string    `json:"value"`
	Found     bool      `json:"found"`
	Decision  string    `json:"decision"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// StateView is the supervisor's copy of the run state.
type StateView struct {
	State     domain.RunState `json:"state"`
	Session   string          `json:"session,omitempty"`
	Probes    uint64          `json:"probes"`
	Dropped   uint64          `json:"dropped_events"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// Board keeps a thread-safe view of the slot table, fed by controller events.
type Board struct {
	mu      sync.RWMutex
	slots   map[int]*SlotView
	state   StateView
	eventCh chan event.Event
}

// NewBoard seeds the view with the static slot fields. Call it before the
// controller starts; the table is not read afterwards.
func NewBoard(table *domain.SlotTable) *Board {
	b := &Board{
		slots:   make(map[int]*SlotView, table.Len()),
		state:   StateView{State: domain.StateInitializing},
		eventCh: make(chan event.Event, 1024), // 버스트 대응을 위한 충분한 버퍼
	}
	for _, s := range table.Slots() {
		b.slots[s.Index] = &SlotView{
			Index:    s.Index,
			Label:    s.Label,
			Category: s.Category,
			Window:   s.Window.String(),
			Value:    s.LastValue.String(),
			Found:    s.Found,
			Decision: domain.DecisionNone.String(),
		}
	}
	return b
}

// SetSession records the journal session id shown on /state.
func (b *Board) SetSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Session = id
}

// Publish implements event.Sink. It never blocks the polling loop; events
// beyond the buffer are counted and dropped.
func (b *Board) Publish(ev event.Event) {
	select {
	case b.eventCh <- ev:
	default:
		b.mu.Lock()
		b.state.Dropped++
		b.mu.Unlock()
	}
}

// StartEventProcessor starts a background goroutine draining published events.
func (b *Board) StartEventProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.eventCh:
				b.ProcessEvent(ev)
			}
		}
	}()
}

// ProcessEvent applies one event to the view.
func (b *Board) ProcessEvent(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch e := ev.(type) {
	case *event.TransitionEvent:
		b.state.State = e.To
		b.state.UpdatedAt = e.Ts
	case *event.DecisionEvent:
		b.state.Probes++
		view, ok := b.slots[e.SlotIndex]
		if !ok {
			return
		}
		if !e.Value.IsEmpty() {
			view.Value = e.Value.String()
		}
		view.Found = e.Found
		view.Decision = e.Decision.String()
		view.UpdatedAt = e.Ts
	}
}

// State returns the current run state view.
func (b *Board) State() StateView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetAllSlots returns copies of every slot sorted by index
func (b *Board) GetAllSlots() []SlotView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]SlotView, 0, len(b.slots))
	for _, v := range b.slots {
		result = append(result, *v)
	}

	// Sort by index for consistent ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result
}

// GetSlot returns one slot view.
func (b *Board) GetSlot(index int) (SlotView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.slots[index]
	if !ok {
		return SlotView{}, false
	}
	return *v, true
}
