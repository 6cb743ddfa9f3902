package domain

import (
	"context"
	"image"
	"time"

	"github.com/shopspring/decimal"
)

// Perception reads values off the external surface.
// A zero value or empty string is the normal "no signal" result, not an error.
type Perception interface {
	Capture(ctx context.Context) (image.Image, error)
	ExtractValue(ctx context.Context, region image.Rectangle) (decimal.Decimal, error)
	ExtractText(ctx context.Context, region image.Rectangle) (string, error)
}

// Actuator simulates interaction with the external surface.
type Actuator interface {
	Click(ctx context.Context, p image.Point) error
	// Wait pauses for d. It returns early when ctx is canceled.
	Wait(ctx context.Context, d time.Duration)
}

// Notifier delivers messages. Both calls are fire-and-forget: delivery
// failures stay inside the implementation and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, text string)
	NotifyImage(ctx context.Context, snapshot image.Image, crop image.Rectangle)
}

// Session brackets the lifetime of a notification channel.
type Session interface {
	Start(ctx context.Context) error
	Stop()
}
