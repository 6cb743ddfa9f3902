package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/event"
	"slot_watch/internal/strategy"
	"slot_watch/internal/summary"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	Name:        "test",
	Pacing:      time.Second,
	StepWait:    10 * time.Millisecond,
	SettleWait:  100 * time.Millisecond,
	TradeSettle: 5 * time.Second,
}

func pt(x, y int) *image.Point {
	p := image.Pt(x, y)
	return &p
}

func numberSlot(label string, button image.Point, min, max int64) *domain.Slot {
	return &domain.Slot{
		Label:  label,
		Window: domain.NewWindow(decimal.NewFromInt(min), decimal.NewFromInt(max)),
		Probe: domain.Probe{
			Kind:   domain.ProbeNumber,
			Button: button,
			Region: image.Rect(164, 378, 268, 403),
		},
	}
}

func singleSlotTable(t *testing.T, images bool) (*domain.SlotTable, *domain.Slot) {
	t.Helper()
	slot := numberSlot("cloak", image.Pt(10, 10), 100, 200)
	table, err := domain.NewSlotTable([]*domain.Category{
		{Name: "equipment", Images: images, Slots: []*domain.Slot{slot}},
	})
	require.NoError(t, err)
	return table, slot
}

func decimals(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestController_Initialize(t *testing.T) {
	ctx := context.Background()
	table, _ := singleSlotTable(t, false)
	surf := &surface{}
	notes := &inbox{}
	cfg := testConfig
	cfg.SetupClicks = []image.Point{{1, 1}, {2, 2}}

	c := NewController(cfg, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})
	require.Equal(t, domain.StateInitializing, c.State())

	require.NoError(t, c.Step(ctx))

	assert.Equal(t, domain.StateSearching, c.State())
	assert.Equal(t, cfg.SetupClicks, surf.clicks)
	require.Len(t, notes.texts, 1)
	assert.Contains(t, notes.texts[0], "Starting test with 1 slots.")
	assert.Contains(t, notes.texts[0], "equipment: cloak (100, 200)")
	assert.Zero(t, surf.captures)
	assert.Zero(t, surf.extracts)
}

func TestController_InitializeSnapshot(t *testing.T) {
	table, _ := singleSlotTable(t, false)
	surf := &surface{}
	notes := &inbox{}
	cfg := testConfig
	cfg.AnnounceSnapshot = true
	cfg.SnapshotCrop = image.Rect(10, 10, 50, 50)

	c := NewController(cfg, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})
	require.NoError(t, c.Step(context.Background()))

	assert.Equal(t, 1, surf.captures)
	require.Len(t, notes.images, 1)
	assert.Equal(t, cfg.SnapshotCrop, notes.images[0].crop)
}

func TestController_ThresholdScenario(t *testing.T) {
	ctx := context.Background()
	table, slot := singleSlotTable(t, false)
	surf := &surface{values: decimals(0, 150, 150, 250, 90)}
	notes := &inbox{}
	tr := &trace{}

	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: notes}, WithSink(tr))
	for i := 0; i < 6; i++ {
		require.NoError(t, c.Step(ctx))
	}

	assert.Equal(t, []string{"NONE", "ENTERED", "NONE", "LEFT", "NONE"}, tr.decisions())
	require.Len(t, notes.texts, 3)
	assert.Equal(t, "cloak is at 150, inside the target range (100, 200).", notes.texts[1])
	assert.Equal(t, "cloak is at 250, outside the target range (100, 200).", notes.texts[2])

	assert.Equal(t, "90", slot.LastValue.String())
	assert.False(t, slot.Found)
	assert.Equal(t, 5, surf.extracts)
	assert.Equal(t, domain.StateSearching, c.State())
	assert.Equal(t, []string{"INITIALIZING->SEARCHING"}, tr.transitions())
}

func TestController_StopMidSearch(t *testing.T) {
	table, slot := singleSlotTable(t, false)
	surf := &surface{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: &inbox{}})
	surf.onClick = func(p image.Point) {
		if p == slot.Probe.Button {
			c.Stop()
		}
	}
	tr := &trace{}
	c.sink = tr

	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.StateStopped, c.State())
	assert.Equal(t, 1, surf.extracts, "the in-flight iteration completes, no further perception")
	assert.Equal(t, []string{"INITIALIZING->SEARCHING", "SEARCHING->STOPPED"}, tr.transitions())
}

func TestController_CanceledContext(t *testing.T) {
	table, _ := singleSlotTable(t, false)
	surf := &surface{}
	notes := &inbox{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, domain.StateStopped, c.State())
	assert.Empty(t, notes.texts)
	assert.Zero(t, surf.extracts)
}

func TestController_TradeCycle(t *testing.T) {
	table, _ := singleSlotTable(t, false)
	table.Categories()[0].Close = pt(99, 99)
	surf := &surface{values: decimals(150)}
	notes := &inbox{}
	cfg := testConfig
	cfg.CommitClicks = []image.Point{{500, 500}, {510, 510}}
	cfg.BacktrackClicks = []image.Point{{600, 600}}

	tr := &trace{}
	var c *Controller
	sink := event.SinkFunc(func(ev event.Event) {
		tr.Publish(ev)
		if e, ok := ev.(*event.TransitionEvent); ok && e.From == domain.StateBacktracking {
			c.Stop()
		}
	})
	c = NewController(cfg, table, Ports{Perception: surf, Actuator: surf, Notifier: notes},
		WithStrategy(strategy.NewThresholdStrategy(true)),
		WithSink(sink),
	)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{
		"INITIALIZING->SEARCHING",
		"SEARCHING->TRADING",
		"TRADING->BACKTRACKING",
		"BACKTRACKING->SEARCHING",
		"SEARCHING->STOPPED",
	}, tr.transitions())

	assert.Equal(t, []image.Point{{10, 10}, {500, 500}, {510, 510}, {600, 600}}, surf.clicks,
		"close is skipped while committing")
	assert.Equal(t, 1, surf.countWaits(cfg.TradeSettle))
	assert.Contains(t, notes.texts, "Commit issued for cloak at 150.")

	var last uint64
	for _, ev := range tr.events {
		assert.Greater(t, ev.GetSeq(), last)
		last = ev.GetSeq()
	}
}

func TestController_CategoryNavigation(t *testing.T) {
	ctx := context.Background()
	a1 := numberSlot("a1", image.Pt(11, 0), 1, 2)
	a2 := numberSlot("a2", image.Pt(12, 0), 1, 2)
	b1 := numberSlot("b1", image.Pt(21, 0), 1, 2)
	table, err := domain.NewSlotTable([]*domain.Category{
		{
			Name:   "a",
			Select: pt(1, 0),
			Back:   pt(2, 0),
			Filter: []image.Point{{3, 0}},
			Close:  pt(4, 0),
			Slots:  []*domain.Slot{a1, a2},
		},
		{Name: "b", Select: pt(5, 0), Slots: []*domain.Slot{b1}},
	})
	require.NoError(t, err)

	surf := &surface{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: &inbox{}})
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Step(ctx))
	}

	assert.Equal(t, []image.Point{
		{1, 0}, {2, 0}, {11, 0}, {3, 0}, {4, 0}, // a1
		{2, 0}, {12, 0}, {3, 0}, {4, 0}, // a2
		{5, 0}, {21, 0}, // b1
		{1, 0}, {2, 0}, {11, 0}, {3, 0}, {4, 0}, // a1 again
	}, surf.clicks)
	assert.Equal(t, a2.Index, table.Cursor())
}

func TestController_TextSlotsAndNextPage(t *testing.T) {
	ctx := context.Background()
	rules := []domain.ContentRule{{Needle: "*", MinCount: 2}}
	mk := func(label string, x int) *domain.Slot {
		return &domain.Slot{
			Label: label,
			Probe: domain.Probe{
				Kind:   domain.ProbeText,
				Button: image.Pt(x, 0),
				Region: image.Rect(0, 0, 10, 10),
				Rules:  rules,
			},
		}
	}
	table, err := domain.NewSlotTable([]*domain.Category{
		{Name: "lookup", NextPage: pt(90, 90), Slots: []*domain.Slot{mk("first", 1), mk("second", 2)}},
	})
	require.NoError(t, err)

	surf := &surface{texts: []string{"**", " *** ", "", ""}}
	notes := &inbox{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Step(ctx))
	}

	assert.Equal(t, []image.Point{{1, 0}, {2, 0}, {90, 90}, {1, 0}}, surf.clicks)
	require.Len(t, notes.texts, 2)
	assert.Contains(t, notes.texts[1], "second is at ***")
}

func TestController_ImageCategory(t *testing.T) {
	table, _ := singleSlotTable(t, true)
	surf := &surface{values: decimals(150)}
	notes := &inbox{}
	cfg := testConfig
	cfg.SnapshotCrop = image.Rect(0, 0, 40, 40)

	c := NewController(cfg, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})
	require.NoError(t, c.Step(context.Background()))
	require.NoError(t, c.Step(context.Background()))

	assert.Equal(t, 1, surf.captures)
	require.Len(t, notes.images, 1)
	assert.Equal(t, cfg.SnapshotCrop, notes.images[0].crop)
	assert.Equal(t, image.Rect(0, 0, 100, 100), notes.images[0].bounds)
}

func TestController_PortErrorStops(t *testing.T) {
	table, _ := singleSlotTable(t, false)
	boom := errors.New("ocr down")
	surf := &surface{err: boom}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: &inbox{}})

	err := c.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read cloak")
	assert.Equal(t, domain.StateStopped, c.State())
	assert.Equal(t, 1, surf.extracts)
}

func TestController_Force(t *testing.T) {
	ctx := context.Background()
	table, _ := singleSlotTable(t, false)
	surf := &surface{values: decimals(150)}
	notes := &inbox{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: notes})

	assert.False(t, c.Force(domain.RunState("PAUSED")))
	require.True(t, c.Force(domain.StateSearching))

	// The forced state skips the announcement and goes straight to a probe.
	require.NoError(t, c.Step(ctx))
	assert.Equal(t, 1, surf.extracts)
	require.Len(t, notes.texts, 1)
	assert.Contains(t, notes.texts[0], "inside the target range")

	c.Stop()
	assert.False(t, c.Force(domain.StateSearching))
	assert.Equal(t, domain.StateStopped, c.State())
}

func TestController_Summary(t *testing.T) {
	ctx := context.Background()
	table, _ := singleSlotTable(t, false)
	surf := &surface{values: decimals(42)}
	notes := &inbox{}
	tr := &trace{}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	sched := summary.New(time.Hour, start, notes, summary.Options{})

	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: notes},
		WithSummary(sched),
		WithClock(func() time.Time { return now }),
		WithSink(tr),
	)

	require.NoError(t, c.Step(ctx)) // initialize, too early
	require.NoError(t, c.Step(ctx)) // probe 42
	now = start.Add(61 * time.Minute)
	require.NoError(t, c.Step(ctx))

	require.Len(t, notes.texts, 2)
	assert.Equal(t, "equipment: cloak: 42", notes.texts[1])

	var kinds []event.NotificationKind
	for _, ev := range tr.events {
		if n, ok := ev.(*event.NotificationEvent); ok {
			kinds = append(kinds, n.Kind)
		}
	}
	assert.Equal(t, []event.NotificationKind{event.NotifyText, event.NotifySummary}, kinds)
	assert.Equal(t, now, sched.LastFired())
}

func BenchmarkController_Search(b *testing.B) {
	slot := numberSlot("cloak", image.Pt(10, 10), 100, 200)
	table, err := domain.NewSlotTable([]*domain.Category{{Name: "equipment", Slots: []*domain.Slot{slot}}})
	if err != nil {
		b.Fatal(err)
	}
	surf := &surface{}
	c := NewController(testConfig, table, Ports{Perception: surf, Actuator: surf, Notifier: &inbox{}})
	c.Force(domain.StateSearching)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := c.Step(ctx); err != nil {
			b.Fatal(err)
		}
		surf.clicks = surf.clicks[:0]
		surf.waits = surf.waits[:0]
	}
}
