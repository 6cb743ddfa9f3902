// Copyright (c) 2023 BVK Chaitanya

package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultPushoverURL is the public messages endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover sends through the Pushover messages API. The expiry hint maps
// onto the message ttl.
type Pushover struct {
	token      string
	user       string
	endpoint   string
	httpClient *http.Client
}

// NewPushover creates a backend. An empty endpoint selects DefaultPushoverURL.
func NewPushover(token, user, endpoint string) (*Pushover, error) {
	if token == "" || user == "" {
		return nil, errors.New("pushover: token and user are required")
	}
	if endpoint == "" {
		endpoint = DefaultPushoverURL
	}
	return &Pushover{
		token:      token,
		user:       user,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *Pushover) Start(context.Context) error { return nil }

func (p *Pushover) Stop() {}

type pushoverMessage struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	TTL       int64  `json:"ttl,omitempty"`

	Attachment     string `json:"attachment_base64,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
}

func (p *Pushover) Send(ctx context.Context, text string, expire time.Duration) error {
	return p.post(ctx, p.message(text, expire))
}

func (p *Pushover) SendImage(ctx context.Context, png []byte, caption string, expire time.Duration) error {
	if caption == "" {
		caption = "snapshot"
	}
	m := p.message(caption, expire)
	m.Attachment = base64.StdEncoding.EncodeToString(png)
	m.AttachmentType = "image/png"
	return p.post(ctx, m)
}

func (p *Pushover) message(text string, expire time.Duration) *pushoverMessage {
	return &pushoverMessage{
		Token:     p.token,
		User:      p.user,
		Message:   text,
		Timestamp: time.Now().Unix(),
		TTL:       int64(expire / time.Second),
	}
}

func (p *Pushover) post(ctx context.Context, m *pushoverMessage) error {
	var msgbuf bytes.Buffer
	if err := json.NewEncoder(&msgbuf).Encode(m); err != nil {
		return fmt.Errorf("could not json-encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &msgbuf)
	if err != nil {
		return fmt.Errorf("could not create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not perform post request: %w", err)
	}
	defer resp.Body.Close()

	type response struct {
		Status  int      `json:"status"`
		Request string   `json:"request"`
		Errors  []string `json:"errors"`
	}
	r := new(response)
	if err := json.NewDecoder(resp.Body).Decode(r); err != nil {
		return fmt.Errorf("could not json-decode response for http-status %d: %w", resp.StatusCode, err)
	}
	if r.Status != 1 {
		if len(r.Errors) != 0 {
			return fmt.Errorf("send failed with http-status %d and error: %w", resp.StatusCode, errors.New(r.Errors[0]))
		}
		return fmt.Errorf("send failed with http-status %d and zero response-status code", resp.StatusCode)
	}
	return nil
}
