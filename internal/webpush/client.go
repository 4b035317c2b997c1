package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"

	"pushfan/internal/dispatch"
	logx "pushfan/pkg/logx"
)

// maxBodyBytes caps how much of a push service reply is kept for logging.
const maxBodyBytes = 4 << 10

// Config carries the VAPID identity used to sign every request.
type Config struct {
	// Subscriber is the contact (mailto: or https:) put in the VAPID claims.
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// RecordSize limits the encrypted record; 0 uses the library default.
	RecordSize uint32
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Response is what the push service answered.
type Response struct {
	Status int
	Body   []byte
}

// TransportError means no HTTP status was obtained.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("push to %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client sends Web Push messages. It is safe for concurrent use.
type Client struct {
	cfg Config
	hc  *http.Client
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.VAPIDPrivateKey) == "" || strings.TrimSpace(cfg.VAPIDPublicKey) == "" {
		return nil, errors.New("webpush: vapid key pair is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, hc: hc, log: log}, nil
}

// Send encrypts payload for the subscription in descriptor and posts it.
// A returned *TransportError means the request never produced a status.
func (c *Client) Send(ctx context.Context, descriptor []byte, payload []byte, h dispatch.Headers) (Response, error) {
	sub, err := DecodeSubscription(descriptor)
	if err != nil {
		return Response{}, err
	}

	resp, err := wp.SendNotificationWithContext(ctx, payload, sub, &wp.Options{
		HTTPClient:      c.hc,
		RecordSize:      c.cfg.RecordSize,
		Subscriber:      c.cfg.Subscriber,
		Topic:           h.Topic,
		TTL:             h.TTL,
		Urgency:         wp.Urgency(h.Urgency),
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return Response{}, &TransportError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	// The status is authoritative; an unreadable body only costs the log reason.
	body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if rerr != nil {
		c.log.Debug("push reply body unreadable", logx.String("endpoint", sub.Endpoint), logx.Err(rerr))
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// Deliver adapts Send to the dispatch engine.
func (c *Client) Deliver(ctx context.Context, subscription []byte, payload []byte, h dispatch.Headers) dispatch.Outcome {
	r, err := c.Send(ctx, subscription, payload, h)
	return dispatch.Outcome{Status: r.Status, Body: r.Body, Err: err}
}

var _ dispatch.Deliverer = (*Client)(nil)
