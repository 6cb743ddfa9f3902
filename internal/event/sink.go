package event

import (
	"context"
	"log/slog"

	"slot_watch/internal/domain"
)

// Sink consumes events. Implementations must not block for long and must
// not panic; they run inline on the polling loop.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Fanout delivers every event to each sink in order.
type Fanout []Sink

func (f Fanout) Publish(ev Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// LogSink writes events through slog.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink on logger. A nil logger follows slog.Default(),
// including replacements made after construction.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ev Event) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	switch e := ev.(type) {
	case *TransitionEvent:
		logger.Info("state transition",
			slog.Uint64("seq", e.Seq),
			slog.String("from", string(e.From)),
			slog.String("to", string(e.To)),
		)
	case *DecisionEvent:
		level := slog.LevelDebug
		if e.Decision != domain.DecisionNone {
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "slot evaluated",
			slog.Uint64("seq", e.Seq),
			slog.Int("slot", e.SlotIndex),
			slog.String("label", e.Label),
			slog.String("category", e.Category),
			slog.String("value", e.Value.String()),
			slog.String("previous", e.Previous.String()),
			slog.String("decision", e.Decision.String()),
		)
	case *NotificationEvent:
		logger.Info("notification queued",
			slog.Uint64("seq", e.Seq),
			slog.String("kind", string(e.Kind)),
			slog.String("text", e.Text),
		)
	default:
		logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}
