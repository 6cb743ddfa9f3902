// Package event defines the structured trace the cycle controller emits.
// Events are informational; no sink can influence the polling loop.
package event

import (
	"time"

	"slot_watch/internal/domain"
)

// Type names an event kind.
type Type string

const (
	TypeTransition   Type = "transition"
	TypeDecision     Type = "decision"
	TypeNotification Type = "notification"
)

// Event is implemented by every event kind.
type Event interface {
	GetSeq() uint64
	GetTime() time.Time
	GetType() Type
}

// BaseEvent carries the ordering fields shared by all events.
type BaseEvent struct {
	Seq uint64    `json:"seq"`
	Ts  time.Time `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64     { return e.Seq }
func (e BaseEvent) GetTime() time.Time { return e.Ts }

// TransitionEvent records a run state change.
type TransitionEvent struct {
	BaseEvent
	From domain.RunState `json:"from"`
	To   domain.RunState `json:"to"`
}

func (e *TransitionEvent) GetType() Type { return TypeTransition }

// DecisionEvent records one tracker evaluation.
type DecisionEvent struct {
	BaseEvent
	SlotIndex int                `json:"slot_index"`
	Label     string             `json:"label"`
	Category  string             `json:"category"`
	Value     domain.Observation `json:"value"`
	Previous  domain.Observation `json:"previous"`
	Found     bool               `json:"found"`
	Decision  domain.Decision    `json:"decision"`
}

func (e *DecisionEvent) GetType() Type { return TypeDecision }

// NotificationKind distinguishes what was handed to the notifier.
type NotificationKind string

const (
	NotifyText    NotificationKind = "text"
	NotifyImage   NotificationKind = "image"
	NotifySummary NotificationKind = "summary"
)

// NotificationEvent records a message handed to the notifier. Delivery is
// not confirmed; the dispatcher reports drops and failures on its own.
type NotificationEvent struct {
	BaseEvent
	Kind NotificationKind `json:"kind"`
	Text string           `json:"text"`
}

func (e *NotificationEvent) GetType() Type { return TypeNotification }
