package notify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu      sync.Mutex
	texts   []string
	images  [][]byte
	expires []time.Duration
	err     error
	started bool
	stopped bool
	gate    chan struct{}
}

func (f *fakeChannel) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeChannel) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeChannel) Send(_ context.Context, text string, expire time.Duration) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	f.expires = append(f.expires, expire)
	return nil
}

func (f *fakeChannel) SendImage(_ context.Context, png []byte, _ string, expire time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, png)
	f.expires = append(f.expires, expire)
	return nil
}

type counters struct {
	sent, dropped, failed atomic.Int64
}

func (c *counters) IncNotificationsSent()    { c.sent.Add(1) }
func (c *counters) IncNotificationsDropped() { c.dropped.Add(1) }
func (c *counters) IncNotificationsFailed()  { c.failed.Add(1) }

func TestDispatcher_DeliversInOrder(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{}
	cnt := &counters{}
	d := NewDispatcher(ch, Options{Expire: 5 * time.Minute, Counters: cnt})

	require.NoError(t, d.Start(ctx))
	d.Notify(ctx, "one")
	d.Notify(ctx, "two")
	d.Notify(ctx, "three")
	d.Stop()

	assert.True(t, ch.started)
	assert.True(t, ch.stopped)
	assert.Equal(t, []string{"one", "two", "three"}, ch.texts)
	for _, e := range ch.expires {
		assert.Equal(t, 5*time.Minute, e)
	}
	assert.Equal(t, int64(3), cnt.sent.Load())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{}
	cnt := &counters{}
	d := NewDispatcher(ch, Options{QueueSize: 1, Counters: cnt})

	// Not started yet: the queue fills up without a consumer.
	d.Notify(ctx, "kept")
	d.Notify(ctx, "dropped")
	d.Notify(ctx, "dropped too")

	require.NoError(t, d.Start(ctx))
	d.Stop()

	assert.Equal(t, []string{"kept"}, ch.texts)
	assert.Equal(t, int64(2), cnt.dropped.Load())

	d.Notify(ctx, "after stop")
	assert.Equal(t, int64(3), cnt.dropped.Load())
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{gate: make(chan struct{})}
	d := NewDispatcher(ch, Options{QueueSize: 2})
	require.NoError(t, d.Start(ctx))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(ctx, "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stalled backend")
	}
	close(ch.gate)
	d.Stop()
}

func TestDispatcher_BackendErrorsAreCounted(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{err: errors.New("chat unreachable")}
	cnt := &counters{}
	d := NewDispatcher(ch, Options{Counters: cnt})

	require.NoError(t, d.Start(ctx))
	d.Notify(ctx, "lost")
	d.Stop()

	assert.Equal(t, int64(1), cnt.failed.Load())
	assert.Zero(t, cnt.sent.Load())
}

func TestDispatcher_Images(t *testing.T) {
	ctx := context.Background()
	frame := imaging.New(200, 100, color.White)
	crop := image.Rect(10, 20, 60, 50)

	t.Run("disabled", func(t *testing.T) {
		ch := &fakeChannel{}
		d := NewDispatcher(ch, Options{})
		require.NoError(t, d.Start(ctx))
		d.NotifyImage(ctx, frame, crop)
		d.Stop()
		assert.Empty(t, ch.images)
	})

	t.Run("cropped and png encoded", func(t *testing.T) {
		ch := &fakeChannel{}
		d := NewDispatcher(ch, Options{Images: true})
		require.NoError(t, d.Start(ctx))
		d.NotifyImage(ctx, frame, crop)
		d.Stop()

		require.Len(t, ch.images, 1)
		img, err := imaging.Decode(bytes.NewReader(ch.images[0]))
		require.NoError(t, err)
		assert.Equal(t, crop.Dx(), img.Bounds().Dx())
		assert.Equal(t, crop.Dy(), img.Bounds().Dy())
	})

	t.Run("crop clipped to the frame", func(t *testing.T) {
		ch := &fakeChannel{}
		cnt := &counters{}
		d := NewDispatcher(ch, Options{Images: true, Counters: cnt})
		require.NoError(t, d.Start(ctx))
		d.NotifyImage(ctx, frame, image.Rect(150, 50, 400, 300))
		d.Stop()

		require.Len(t, ch.images, 1)
		img, err := imaging.Decode(bytes.NewReader(ch.images[0]))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 50, 50), img.Bounds())
		assert.Zero(t, cnt.failed.Load())
	})

	t.Run("crop outside the frame", func(t *testing.T) {
		ch := &fakeChannel{}
		cnt := &counters{}
		d := NewDispatcher(ch, Options{Images: true, Counters: cnt})
		require.NoError(t, d.Start(ctx))
		d.NotifyImage(ctx, frame, image.Rect(500, 500, 600, 600))
		d.Stop()

		assert.Empty(t, ch.images)
		assert.Equal(t, int64(1), cnt.dropped.Load())
		assert.Zero(t, cnt.failed.Load())
	})
}

func TestDispatcher_RateLimit(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{}
	d := NewDispatcher(ch, Options{Rate: 20, Burst: 1})

	require.NoError(t, d.Start(ctx))
	start := time.Now()
	for i := 0; i < 3; i++ {
		d.Notify(ctx, "tick")
	}
	d.Stop()

	// Burst of one, then one token every 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Len(t, ch.texts, 3)
}
