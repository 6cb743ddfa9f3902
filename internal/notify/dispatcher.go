package notify

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"
)

const (
	defaultQueueSize    = 64
	defaultDrainTimeout = 10 * time.Second
)

// Options configure a Dispatcher.
type Options struct {
	QueueSize    int           // pending messages before new ones are dropped
	Rate         rate.Limit    // messages per second, 0 = unlimited
	Burst        int           // limiter burst
	Expire       time.Duration // expiry hint attached to every message
	Images       bool          // NotifyImage is a no-op when false
	DrainTimeout time.Duration // how long Stop waits for queued messages
	Counters     Counters
}

type message struct {
	text string
	img  image.Image
}

// Dispatcher implements domain.Notifier on top of a Channel. Notify calls
// never block and never fail; delivery happens on a single worker.
type Dispatcher struct {
	ch      Channel
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   chan message
	closed  bool
	started bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher for ch. Call Start before expecting delivery.
func NewDispatcher(ch Channel, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.Counters == nil {
		opts.Counters = nopCounters{}
	}
	limit := opts.Rate
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		ch:      ch,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		queue:   make(chan message, opts.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start opens the backend session and launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.ch.Start(ctx); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d.mu.Lock()
	d.started = true
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(wctx)
	slog.Info("Notification dispatcher started", slog.Int("queue", d.opts.QueueSize), slog.Bool("images", d.opts.Images))
	return nil
}

// Stop delivers what is already queued, waiting at most DrainTimeout, then
// stops the backend. Later Notify calls are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return
	}

	select {
	case <-d.done:
	case <-time.After(d.opts.DrainTimeout):
		slog.Warn("Notification drain timed out", slog.Int("pending", len(d.queue)))
		d.cancel()
		<-d.done
	}
	d.cancel()
	d.ch.Stop()
	slog.Info("Notification dispatcher stopped")
}

// Notify queues a text message.
func (d *Dispatcher) Notify(_ context.Context, text string) {
	d.enqueue(message{text: text})
}

// NotifyImage crops the snapshot now, so later frames cannot leak in, and
// queues it for encoding and delivery.
func (d *Dispatcher) NotifyImage(_ context.Context, snapshot image.Image, crop image.Rectangle) {
	if !d.opts.Images || snapshot == nil {
		return
	}
	var img image.Image = imaging.Clone(snapshot)
	if !crop.Empty() {
		area := crop.Intersect(snapshot.Bounds())
		if area.Empty() {
			d.opts.Counters.IncNotificationsDropped()
			slog.Warn("Snapshot crop outside the frame, image dropped",
				slog.String("crop", crop.String()), slog.String("bounds", snapshot.Bounds().String()))
			return
		}
		img = imaging.Crop(snapshot, area)
	}
	d.enqueue(message{img: img})
}

func (d *Dispatcher) enqueue(m message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.opts.Counters.IncNotificationsDropped()
		slog.Warn("Notification dropped after stop")
		return
	}
	select {
	case d.queue <- m:
	default:
		d.opts.Counters.IncNotificationsDropped()
		slog.Warn("Notification queue full, message dropped", slog.Int("capacity", cap(d.queue)))
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for m := range d.queue {
		if err := d.limiter.Wait(ctx); err != nil {
			d.opts.Counters.IncNotificationsDropped()
			continue
		}
		if err := d.deliver(ctx, m); err != nil {
			d.opts.Counters.IncNotificationsFailed()
			slog.Error("Notification delivery failed", slog.Any("error", err))
			continue
		}
		d.opts.Counters.IncNotificationsSent()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m message) error {
	if m.img == nil {
		return d.ch.Send(ctx, m.text, d.opts.Expire)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, m.img, imaging.PNG); err != nil {
		return err
	}
	return d.ch.SendImage(ctx, buf.Bytes(), m.text, d.opts.Expire)
}
