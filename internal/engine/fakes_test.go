package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"slot_watch/internal/event"

	"github.com/shopspring/decimal"
)

// surface is a scripted perception + actuator pair.
type surface struct {
	mu sync.Mutex

	values []decimal.Decimal
	texts  []string
	err    error

	clicks   []image.Point
	waits    []time.Duration
	captures int
	extracts int

	onClick func(p image.Point)
}

func (s *surface) Capture(context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

func (s *surface) ExtractValue(context.Context, image.Rectangle) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extracts++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	if len(s.values) == 0 {
		return decimal.Zero, nil
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

func (s *surface) ExtractText(context.Context, image.Rectangle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extracts++
	if s.err != nil {
		return "", s.err
	}
	if len(s.texts) == 0 {
		return "", nil
	}
	v := s.texts[0]
	s.texts = s.texts[1:]
	return v, nil
}

func (s *surface) Click(_ context.Context, p image.Point) error {
	s.mu.Lock()
	s.clicks = append(s.clicks, p)
	hook := s.onClick
	s.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (s *surface) Wait(_ context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
}

func (s *surface) countWaits(d time.Duration) int {
	n := 0
	for _, w := range s.waits {
		if w == d {
			n++
		}
	}
	return n
}

type sentImage struct {
	bounds image.Rectangle
	crop   image.Rectangle
}

type inbox struct {
	texts  []string
	images []sentImage
}

func (n *inbox) Notify(_ context.Context, text string) {
	n.texts = append(n.texts, text)
}

func (n *inbox) NotifyImage(_ context.Context, img image.Image, crop image.Rectangle) {
	n.images = append(n.images, sentImage{bounds: img.Bounds(), crop: crop})
}

type trace struct {
	events []event.Event
}

func (t *trace) Publish(ev event.Event) {
	t.events = append(t.events, ev)
}

func (t *trace) transitions() []string {
	var out []string
	for _, ev := range t.events {
		if tr, ok := ev.(*event.TransitionEvent); ok {
			out = append(out, string(tr.From)+"->"+string(tr.To))
		}
	}
	return out
}

func (t *trace) decisions() []string {
	var out []string
	for _, ev := range t.events {
		if d, ok := ev.(*event.DecisionEvent); ok {
			out = append(out, d.Decision.String())
		}
	}
	return out
}
