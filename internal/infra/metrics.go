package infra

import (
	"sync/atomic"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/event"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides lightweight observability for the polling loop.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	probes        atomic.Uint64
	entered       atomic.Uint64
	left          atomic.Uint64
	updated       atomic.Uint64
	transitions   atomic.Uint64
	notifySent    atomic.Uint64
	notifyDropped atomic.Uint64
	notifyFailed  atomic.Uint64
	errorsTotal   atomic.Uint64

	// Bridge call latency
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	stopped           atomic.Int32 // 1 = controller reached STOPPED
}

// Publish implements event.Sink.
func (m *Metrics) Publish(ev event.Event) {
	switch e := ev.(type) {
	case *event.DecisionEvent:
		m.probes.Add(1)
		switch e.Decision {
		case domain.DecisionEntered:
			m.entered.Add(1)
		case domain.DecisionLeft:
			m.left.Add(1)
		case domain.DecisionUpdated:
			m.updated.Add(1)
		}
	case *event.TransitionEvent:
		m.transitions.Add(1)
		if e.To == domain.StateStopped {
			m.stopped.Store(1)
		}
	}
}

// RecordCall records one bridge round trip.
func (m *Metrics) RecordCall(latency time.Duration) {
	m.latencySumNs.Add(int64(latency))
	m.latencyCount.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

func (m *Metrics) IncNotificationsSent()    { m.notifySent.Add(1) }
func (m *Metrics) IncNotificationsDropped() { m.notifyDropped.Add(1) }
func (m *Metrics) IncNotificationsFailed()  { m.notifyFailed.Add(1) }

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Probes            uint64
	Entered           uint64
	Left              uint64
	Updated           uint64
	Transitions       uint64
	NotifySent        uint64
	NotifyDropped     uint64
	NotifyFailed      uint64
	ErrorsTotal       uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	Stopped           bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		Probes:            m.probes.Load(),
		Entered:           m.entered.Load(),
		Left:              m.left.Load(),
		Updated:           m.updated.Load(),
		Transitions:       m.transitions.Load(),
		NotifySent:        m.notifySent.Load(),
		NotifyDropped:     m.notifyDropped.Load(),
		NotifyFailed:      m.notifyFailed.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Stopped:           m.stopped.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.probes, &m.entered, &m.left, &m.updated, &m.transitions,
		&m.notifySent, &m.notifyDropped, &m.notifyFailed, &m.errorsTotal, &m.latencyCount,
	} {
		c.Store(0)
	}
	m.latencySumNs.Store(0)
	m.activeConnections.Store(0)
	m.stopped.Store(0)
}

var (
	descProbes        = prometheus.NewDesc("slotwatch_probes_total", "Slots probed.", nil, nil)
	descDecisions     = prometheus.NewDesc("slotwatch_decisions_total", "Non-trivial tracker decisions.", []string{"decision"}, nil)
	descTransitions   = prometheus.NewDesc("slotwatch_transitions_total", "Run state transitions.", nil, nil)
	descNotifications = prometheus.NewDesc("slotwatch_notifications_total", "Notification outcomes.", []string{"outcome"}, nil)
	descErrors        = prometheus.NewDesc("slotwatch_errors_total", "Port errors.", nil, nil)
	descLatency       = prometheus.NewDesc("slotwatch_bridge_avg_latency_seconds", "Average bridge round trip.", nil, nil)
	descConnections   = prometheus.NewDesc("slotwatch_bridge_connections", "Open agent connections.", nil, nil)
	descStopped       = prometheus.NewDesc("slotwatch_stopped", "1 once the controller stopped.", nil, nil)
)

// Collector exports a Metrics value to prometheus.
type Collector struct {
	m *Metrics
}

// NewCollector wraps m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{m: m}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descProbes, descDecisions, descTransitions, descNotifications,
		descErrors, descLatency, descConnections, descStopped,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(descProbes, s.Probes)
	counter(descDecisions, s.Entered, "entered")
	counter(descDecisions, s.Left, "left")
	counter(descDecisions, s.Updated, "updated")
	counter(descTransitions, s.Transitions)
	counter(descNotifications, s.NotifySent, "sent")
	counter(descNotifications, s.NotifyDropped, "dropped")
	counter(descNotifications, s.NotifyFailed, "failed")
	counter(descErrors, s.ErrorsTotal)
	gauge(descLatency, time.Duration(s.AvgLatencyNs).Seconds())
	gauge(descConnections, float64(s.ActiveConnections))
	stopped := 0.0
	if s.Stopped {
		stopped = 1
	}
	gauge(descStopped, stopped)
}
