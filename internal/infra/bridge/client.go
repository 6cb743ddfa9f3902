// Package bridge reaches the local capture/OCR/input agent over a websocket
// and exposes it as the Perception and Actuator ports.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"slot_watch/internal/ctxutil"
	"slot_watch/internal/domain"
	"slot_watch/internal/infra"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultDialAttempts = 5
)

type request struct {
	ID     uint64 `json:"id"`
	Op     string `json:"op"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Region []int  `json:"region,omitempty"`
}

type response struct {
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64 PNG
	Error string `json:"error,omitempty"`
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records call latency, errors and connections.
func WithMetrics(m *infra.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBackoff replaces the redial delay schedule.
func WithBackoff(f func(retry int) time.Duration) Option {
	return func(c *Client) { c.backoff = f }
}

// WithDialAttempts bounds redials inside one call.
func WithDialAttempts(n int) Option {
	return func(c *Client) { c.attempts = n }
}

// Client is a single-flight request/response client. Calls are serialized;
// the connection is dialed lazily and dropped on any transport failure.
type Client struct {
	url      string
	timeout  time.Duration
	dialer   websocket.Dialer
	backoff  func(int) time.Duration
	attempts int
	metrics  *infra.Metrics

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
	closed bool
}

// New creates a client for the agent at url. Nothing is dialed yet.
func New(url string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		url:      url,
		timeout:  timeout,
		dialer:   websocket.Dialer{HandshakeTimeout: timeout},
		backoff:  infra.CalculateBackoff,
		attempts: defaultDialAttempts,
		metrics:  &infra.Metrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture returns the current full frame.
func (c *Client) Capture(ctx context.Context) (image.Image, error) {
	resp, err := c.call(ctx, &request{Op: "capture"})
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, domain.NewFatalNetworkError("capture", fmt.Errorf("image payload: %w", err))
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.NewFatalNetworkError("capture", fmt.Errorf("decode image: %w", err))
	}
	return img, nil
}

// ExtractValue reads a number inside region. An empty or unreadable value is
// the zero decimal, which the tracker treats as no signal.
func (c *Client) ExtractValue(ctx context.Context, region image.Rectangle) (decimal.Decimal, error) {
	resp, err := c.call(ctx, &request{Op: "extract_value", Region: rect(region)})
	if err != nil {
		return decimal.Zero, err
	}
	digits := strings.ReplaceAll(strings.TrimSpace(resp.Value), ",", "")
	if digits == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(digits)
	if err != nil {
		slog.Warn("Unreadable value treated as empty", slog.String("value", resp.Value), slog.String("region", region.String()))
		return decimal.Zero, nil
	}
	return v, nil
}

// ExtractText reads free text inside region.
func (c *Client) ExtractText(ctx context.Context, region image.Rectangle) (string, error) {
	resp, err := c.call(ctx, &request{Op: "extract_text", Region: rect(region)})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Click simulates a pointer click at p.
func (c *Client) Click(ctx context.Context, p image.Point) error {
	_, err := c.call(ctx, &request{Op: "click", X: p.X, Y: p.Y})
	return err
}

// Wait pauses locally; the agent is not involved.
func (c *Client) Wait(ctx context.Context, d time.Duration) {
	ctxutil.Sleep(ctx, d)
}

// Close drops the connection. Later calls fail with ErrBridgeClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.dropLocked()
	return nil
}

func rect(r image.Rectangle) []int {
	return []int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

func (c *Client) call(ctx context.Context, req *request) (_ *response, status error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrBridgeClosed
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordCall(time.Since(start))
		if status != nil {
			c.metrics.RecordError()
		}
	}()

	conn, err := c.connectLocked(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	// Unblock reads when the caller goes away before the deadline.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	c.nextID++
	req.ID = c.nextID

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		c.dropLocked()
		return nil, domain.NewNetworkError(req.Op, err)
	}

	conn.SetReadDeadline(deadline)
	for {
		resp := new(response)
		if err := conn.ReadJSON(resp); err != nil {
			c.dropLocked()
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", ctx.Err(), err)
			}
			return nil, domain.NewNetworkError(req.Op, err)
		}
		if resp.ID != req.ID {
			slog.Debug("Stale agent response skipped", slog.Uint64("id", resp.ID), slog.Uint64("want", req.ID))
			continue
		}
		if !resp.OK {
			return nil, fmt.Errorf("%s: %w: %s", req.Op, domain.ErrAgent, resp.Error)
		}
		return resp, nil
	}
}

func (c *Client) connectLocked(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	var lastErr error
	for retry := 0; retry < c.attempts; retry++ {
		if retry > 0 {
			delay := c.backoff(retry - 1)
			slog.Warn("Agent connection failed",
				slog.Any("error", lastErr),
				slog.Int("retry", retry),
				slog.Duration("delay", delay),
			)
			ctxutil.Sleep(ctx, delay)
		}
		if err := ctx.Err(); err != nil {
			return nil, domain.NewNetworkError("dial", err)
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			lastErr = err
			continue
		}
		c.conn = conn
		c.metrics.IncrementConnections()
		slog.Info("Agent connected", slog.String("url", c.url))
		return conn, nil
	}
	return nil, domain.NewNetworkError("dial", fmt.Errorf("after %d attempts: %w", c.attempts, lastErr))
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.metrics.DecrementConnections()
}
