// Package notify delivers watcher messages to a human through a chat backend.
package notify

import (
	"context"
	"time"
)

// Channel is one delivery backend. Implementations may block; the
// Dispatcher keeps them off the polling loop.
type Channel interface {
	Start(ctx context.Context) error
	Stop()
	// Send delivers text. A positive expire asks the backend to retract or
	// expire the message after that long.
	Send(ctx context.Context, text string, expire time.Duration) error
	// SendImage delivers a PNG-encoded snapshot.
	SendImage(ctx context.Context, png []byte, caption string, expire time.Duration) error
}

// Counters receives delivery outcomes. infra.Metrics implements it.
type Counters interface {
	IncNotificationsSent()
	IncNotificationsDropped()
	IncNotificationsFailed()
}

type nopCounters struct{}

func (nopCounters) IncNotificationsSent()    {}
func (nopCounters) IncNotificationsDropped() {}
func (nopCounters) IncNotificationsFailed()  {}
