// Package summary emits periodic aggregate reports of every slot's last
// known value.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slot_watch/internal/domain"
)

// Options tune when the first report may go out.
type Options struct {
	// AfterFirstPass holds back interval reports until every slot has been
	// probed once.
	AfterFirstPass bool
	// ReportOnFirstPass sends one report as soon as the first pass completes.
	ReportOnFirstPass bool
}

// Scheduler fires on a wall-clock interval. It is driven by the polling
// loop and is not safe for concurrent use.
type Scheduler struct {
	interval  time.Duration
	lastFired time.Time
	opts      Options
	notifier  domain.Notifier

	passDone    bool
	firstPassed bool
}

// New creates a scheduler whose first interval starts at now.
func New(interval time.Duration, now time.Time, notifier domain.Notifier, opts Options) *Scheduler {
	return &Scheduler{
		interval:  interval,
		lastFired: now,
		opts:      opts,
		notifier:  notifier,
	}
}

// Enabled reports whether periodic reports are configured.
func (s *Scheduler) Enabled() bool {
	return s != nil && s.interval > 0
}

// LastFired returns the time of the last report (or construction time).
func (s *Scheduler) LastFired() time.Time {
	return s.lastFired
}

// MaybeFire sends a report when at least one interval elapsed since the
// last one and returns whether it did.
func (s *Scheduler) MaybeFire(ctx context.Context, now time.Time, table *domain.SlotTable) bool {
	if !s.Enabled() {
		return false
	}
	if s.opts.AfterFirstPass && !s.passDone {
		return false
	}
	if now.Sub(s.lastFired) < s.interval {
		return false
	}
	s.fire(ctx, now, table)
	return true
}

// PassCompleted latches the first full pass. With ReportOnFirstPass it
// sends the initial report once and returns true.
func (s *Scheduler) PassCompleted(ctx context.Context, now time.Time, table *domain.SlotTable) bool {
	if s == nil {
		return false
	}
	s.passDone = true
	if !s.opts.ReportOnFirstPass || s.firstPassed {
		return false
	}
	s.firstPassed = true
	s.fire(ctx, now, table)
	return true
}

func (s *Scheduler) fire(ctx context.Context, now time.Time, table *domain.SlotTable) {
	s.lastFired = now
	s.notifier.Notify(ctx, Render(table))
}

// Render builds one report line per category:
//
//	<category>: <label>: <value>, <label>: <value>
func Render(table *domain.SlotTable) string {
	var sb strings.Builder
	for i, c := range table.Categories() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		pairs := make([]string, 0, len(c.Slots))
		for _, slot := range c.Slots {
			pairs = append(pairs, fmt.Sprintf("%s: %s", slot.Label, slot.LastValue))
		}
		fmt.Fprintf(&sb, "%s: %s", c.Name, strings.Join(pairs, ", "))
	}
	return sb.String()
}
