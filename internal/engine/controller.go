package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/event"
	"slot_watch/internal/strategy"
	"slot_watch/internal/summary"
	"slot_watch/internal/tracker"
)

// Config holds the pacing and click geometry of one deployment.
type Config struct {
	Name string

	Pacing      time.Duration // pause between iterations
	StepWait    time.Duration // pause after every click
	SettleWait  time.Duration // pause before reading a value
	TradeSettle time.Duration // pause after a TRADING iteration

	SetupClicks     []image.Point // once, while INITIALIZING
	CommitClicks    []image.Point // TRADING
	BacktrackClicks []image.Point // BACKTRACKING

	AnnounceSnapshot bool
	SnapshotCrop     image.Rectangle
}

// Ports are the external capabilities the controller drives.
type Ports struct {
	Perception domain.Perception
	Actuator   domain.Actuator
	Notifier   domain.Notifier
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTracker replaces the default tracker policy.
func WithTracker(t *tracker.Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithStrategy replaces the default notify-only strategy.
func WithStrategy(s strategy.Strategy) Option {
	return func(c *Controller) { c.strategy = s }
}

// WithSummary attaches a summary scheduler.
func WithSummary(s *summary.Scheduler) Option {
	return func(c *Controller) { c.summary = s }
}

// WithSink sets the event sink.
func WithSink(s event.Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithClock overrides the wall clock used for summaries and events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the polling state machine. Run MUST be called from a single
// goroutine; only the state cell is shared with other goroutines.
type Controller struct {
	cfg   Config
	table *domain.SlotTable
	ports Ports

	tracker  *tracker.Tracker
	strategy strategy.Strategy
	summary  *summary.Scheduler
	sink     event.Sink
	now      func() time.Time

	state *domain.StateCell
	last  domain.RunState

	nextSeq  uint64
	snapshot image.Image
	pending  *domain.Slot     // slot that triggered the commit
	pageTurn *domain.Category // category that wrapped on the previous pass
}

// NewController creates a controller in INITIALIZING.
func NewController(cfg Config, table *domain.SlotTable, ports Ports, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		table:    table,
		ports:    ports,
		tracker:  tracker.New(tracker.Policy{}),
		strategy: strategy.NewThresholdStrategy(false),
		sink:     event.Discard,
		now:      time.Now,
		state:    domain.NewStateCell(),
		nextSeq:  1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last = c.state.Load()
	return c
}

// State returns the current run state (external read).
func (c *Controller) State() domain.RunState {
	return c.state.Load()
}

// Force sets the run state on behalf of a supervisor. The loop picks it up
// at its next iteration boundary. It reports false for undefined states and
// once the controller stopped.
func (c *Controller) Force(s domain.RunState) bool {
	if !c.state.Force(s) {
		return false
	}
	slog.Info("Run state forced by supervisor", slog.String("state", string(s)))
	return true
}

// Stop requests a graceful stop. The loop exits at its next iteration boundary.
func (c *Controller) Stop() {
	c.state.Stop()
}

// Run drives iterations until the state is STOPPED, ctx is canceled, or a
// port fails. Port errors are returned unchanged in meaning; they are
// never retried here.
func (c *Controller) Run(ctx context.Context) (err error) {
	slog.Info("Cycle controller started",
		slog.String("name", c.cfg.Name),
		slog.Int("slots", c.table.Len()),
	)

	defer func() {
		c.state.Stop()
		c.emit(&event.TransitionEvent{From: c.last, To: domain.StateStopped})
		if err != nil {
			slog.Error("Cycle controller halted", slog.Any("error", err))
			return
		}
		slog.Info("Cycle controller stopped")
	}()

	for {
		st := c.state.Load()
		if st == domain.StateStopped || ctx.Err() != nil {
			return nil
		}
		if err := c.step(ctx, st); err != nil {
			return err
		}
		c.pace(ctx, st)
	}
}

// Step runs exactly one iteration for the current state.
func (c *Controller) Step(ctx context.Context) error {
	return c.step(ctx, c.state.Load())
}

func (c *Controller) step(ctx context.Context, st domain.RunState) error {
	c.last = st
	if st == domain.StateStopped {
		return nil
	}

	if c.summary.MaybeFire(ctx, c.now(), c.table) {
		c.emitNotification(event.NotifySummary, summary.Render(c.table))
	}

	switch st {
	case domain.StateInitializing:
		return c.initialize(ctx)
	case domain.StateSearching:
		return c.search(ctx)
	case domain.StateTrading:
		return c.commit(ctx)
	case domain.StateBacktracking:
		return c.backtrack(ctx)
	default:
		return fmt.Errorf("unknown run state %q", st)
	}
}

func (c *Controller) pace(ctx context.Context, st domain.RunState) {
	if st == domain.StateTrading {
		c.ports.Actuator.Wait(ctx, c.cfg.TradeSettle)
		return
	}
	c.ports.Actuator.Wait(ctx, c.cfg.Pacing)
}

func (c *Controller) initialize(ctx context.Context) error {
	c.notify(ctx, c.announcement())

	if c.cfg.AnnounceSnapshot {
		img, err := c.ports.Perception.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture start-up snapshot: %w", err)
		}
		c.snapshot = img
		c.notifySnapshot(ctx)
	}

	for _, p := range c.cfg.SetupClicks {
		if err := c.click(ctx, p); err != nil {
			return err
		}
	}

	c.transition(domain.StateInitializing, domain.StateSearching)
	return nil
}

func (c *Controller) search(ctx context.Context) error {
	if turned := c.pageTurn; turned != nil {
		c.pageTurn = nil
		if turned.NextPage != nil {
			if err := c.click(ctx, *turned.NextPage); err != nil {
				return err
			}
		}
	}

	cat := c.table.CurrentCategory()
	slot := c.table.Current()

	if c.table.Position() == 0 && cat.Select != nil {
		if err := c.click(ctx, *cat.Select); err != nil {
			return err
		}
	}
	if cat.Back != nil {
		if err := c.click(ctx, *cat.Back); err != nil {
			return err
		}
	}
	if err := c.click(ctx, slot.Probe.Button); err != nil {
		return err
	}
	for _, p := range cat.Filter {
		if err := c.click(ctx, p); err != nil {
			return err
		}
	}

	c.ports.Actuator.Wait(ctx, c.cfg.SettleWait)

	if cat.Images {
		img, err := c.ports.Perception.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capture %s: %w", slot.Label, err)
		}
		c.snapshot = img
	}

	obs, err := c.read(ctx, slot)
	if err != nil {
		return err
	}

	res := c.tracker.Evaluate(slot, obs)
	c.emit(&event.DecisionEvent{
		SlotIndex: slot.Index,
		Label:     slot.Label,
		Category:  slot.Category,
		Value:     res.Current,
		Previous:  res.Previous,
		Found:     slot.Found,
		Decision:  res.Decision,
	})

	commit := false
	for _, action := range c.strategy.OnDecision(slot, cat.Images, res) {
		switch action.Type {
		case strategy.ActionNotify:
			c.notify(ctx, action.Text)
		case strategy.ActionSnapshot:
			c.notifySnapshot(ctx)
		case strategy.ActionCommit:
			commit = true
		}
	}

	if !commit && cat.Close != nil {
		if err := c.click(ctx, *cat.Close); err != nil {
			return err
		}
	}

	step := c.table.Advance()
	if step.Wrapped {
		c.pageTurn = cat
	}
	if step.PassCompleted && c.summary.PassCompleted(ctx, c.now(), c.table) {
		c.emitNotification(event.NotifySummary, summary.Render(c.table))
	}

	if commit {
		c.pending = slot
		c.transition(domain.StateSearching, domain.StateTrading)
	}
	return nil
}

func (c *Controller) commit(ctx context.Context) error {
	for _, p := range c.cfg.CommitClicks {
		if err := c.click(ctx, p); err != nil {
			return err
		}
	}
	if c.pending != nil {
		c.notify(ctx, fmt.Sprintf("Commit issued for %s at %s.", c.pending.Label, c.pending.LastValue))
	}
	c.transition(domain.StateTrading, domain.StateBacktracking)
	return nil
}

func (c *Controller) backtrack(ctx context.Context) error {
	for _, p := range c.cfg.BacktrackClicks {
		if err := c.click(ctx, p); err != nil {
			return err
		}
	}
	c.pending = nil
	c.transition(domain.StateBacktracking, domain.StateSearching)
	return nil
}

func (c *Controller) read(ctx context.Context, slot *domain.Slot) (domain.Observation, error) {
	region := slot.Probe.Region
	if slot.Probe.Kind == domain.ProbeText {
		text, err := c.ports.Perception.ExtractText(ctx, region)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("read %s: %w", slot.Label, err)
		}
		return domain.TextObservation(strings.TrimSpace(text)), nil
	}
	v, err := c.ports.Perception.ExtractValue(ctx, region)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("read %s: %w", slot.Label, err)
	}
	return domain.NumberObservation(v), nil
}

func (c *Controller) click(ctx context.Context, p image.Point) error {
	if err := c.ports.Actuator.Click(ctx, p); err != nil {
		return fmt.Errorf("click %v: %w", p, err)
	}
	c.ports.Actuator.Wait(ctx, c.cfg.StepWait)
	return nil
}

func (c *Controller) transition(from, to domain.RunState) {
	if !c.state.Transition(from, to) {
		slog.Debug("Transition skipped", slog.String("from", string(from)), slog.String("to", string(to)))
		return
	}
	c.last = to
	c.emit(&event.TransitionEvent{From: from, To: to})
}

func (c *Controller) notify(ctx context.Context, text string) {
	c.ports.Notifier.Notify(ctx, text)
	c.emitNotification(event.NotifyText, text)
}

func (c *Controller) notifySnapshot(ctx context.Context) {
	if c.snapshot == nil {
		return
	}
	crop := c.cfg.SnapshotCrop
	if crop.Empty() {
		crop = c.snapshot.Bounds()
	}
	c.ports.Notifier.NotifyImage(ctx, c.snapshot, crop)
	c.emitNotification(event.NotifyImage, crop.String())
}

func (c *Controller) emitNotification(kind event.NotificationKind, text string) {
	c.emit(&event.NotificationEvent{Kind: kind, Text: text})
}

func (c *Controller) emit(ev event.Event) {
	switch e := ev.(type) {
	case *event.TransitionEvent:
		e.BaseEvent = c.base()
	case *event.DecisionEvent:
		e.BaseEvent = c.base()
	case *event.NotificationEvent:
		e.BaseEvent = c.base()
	}
	c.sink.Publish(ev)
}

func (c *Controller) base() event.BaseEvent {
	b := event.BaseEvent{Seq: c.nextSeq, Ts: c.now()}
	c.nextSeq++
	return b
}

func (c *Controller) announcement() string {
	var sb strings.Builder
	name := c.cfg.Name
	if name == "" {
		name = "slot watch"
	}
	fmt.Fprintf(&sb, "Starting %s with %d slots.", name, c.table.Len())
	for _, cat := range c.table.Categories() {
		targets := make([]string, 0, len(cat.Slots))
		for _, s := range cat.Slots {
			targets = append(targets, s.Label+" "+s.Target())
		}
		fmt.Fprintf(&sb, "\n%s: %s", cat.Name, strings.Join(targets, ", "))
	}
	return sb.String()
}
