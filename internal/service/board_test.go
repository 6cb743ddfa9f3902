package service

import (
	"context"
	"image"
	"testing"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/event"

	"github.com/shopspring/decimal"
)

func newTestTable(t *testing.T) *domain.SlotTable {
	t.Helper()
	mk := func(label string, max int64) *domain.Slot {
		return &domain.Slot{
			Label:  label,
			Window: domain.NewWindow(decimal.NewFromInt(501), decimal.NewFromInt(max)),
			Probe:  domain.Probe{Region: image.Rect(164, 378, 268, 403)},
		}
	}
	table, err := domain.NewSlotTable([]*domain.Category{
		{Name: "equipment", Slots: []*domain.Slot{mk("cloak", 40000), mk("gloves", 40000)}},
		{Name: "books", Slots: []*domain.Slot{mk("tier1", 6000)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestBoard_Seed(t *testing.T) {
	b := NewBoard(newTestTable(t))

	all := b.GetAllSlots()
	if len(all) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(all))
	}
	for i, v := range all {
		if v.Index != i {
			t.Errorf("slot %d out of order: %+v", i, v)
		}
	}
	if all[2].Category != "books" || all[2].Window != "(501, 6000)" || all[2].Value != "-" {
		t.Errorf("unexpected seed: %+v", all[2])
	}
	if b.State().State != domain.StateInitializing {
		t.Errorf("Expected INITIALIZING, got %s", b.State().State)
	}
}

func TestBoard_ProcessEvent(t *testing.T) {
	b := NewBoard(newTestTable(t))
	now := time.Now()

	b.ProcessEvent(&event.TransitionEvent{
		BaseEvent: event.BaseEvent{Seq: 1, Ts: now},
		From:      domain.StateInitializing,
		To:        domain.StateSearching,
	})
	b.ProcessEvent(&event.DecisionEvent{
		BaseEvent: event.BaseEvent{Seq: 2, Ts: now},
		SlotIndex: 1,
		Value:     domain.NumberObservation(decimal.NewFromInt(900)),
		Found:     true,
		Decision:  domain.DecisionEntered,
	})
	// An empty read keeps the last known value.
	b.ProcessEvent(&event.DecisionEvent{
		BaseEvent: event.BaseEvent{Seq: 3, Ts: now},
		SlotIndex: 1,
		Found:     true,
		Decision:  domain.DecisionNone,
	})

	gloves, ok := b.GetSlot(1)
	if !ok {
		t.Fatal("gloves should exist")
	}
	if gloves.Value != "900" || !gloves.Found || gloves.Decision != "NONE" {
		t.Errorf("unexpected view: %+v", gloves)
	}

	st := b.State()
	if st.State != domain.StateSearching || st.Probes != 2 {
		t.Errorf("unexpected state view: %+v", st)
	}

	if _, ok := b.GetSlot(99); ok {
		t.Error("slot 99 should not exist")
	}
}

func TestBoard_EventProcessor(t *testing.T) {
	b := NewBoard(newTestTable(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.StartEventProcessor(ctx)
	b.Publish(&event.TransitionEvent{From: domain.StateSearching, To: domain.StateStopped})

	deadline := time.Now().Add(time.Second)
	for b.State().State != domain.StateStopped {
		if time.Now().After(deadline) {
			t.Fatal("event was not processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBoard_PublishNeverBlocks(t *testing.T) {
	b := NewBoard(newTestTable(t))

	// No processor running: the buffer fills, then events are dropped.
	for i := 0; i < cap(b.eventCh)+10; i++ {
		b.Publish(&event.DecisionEvent{SlotIndex: 0})
	}
	if got := b.State().Dropped; got != 10 {
		t.Errorf("Expected 10 dropped events, got %d", got)
	}
}
