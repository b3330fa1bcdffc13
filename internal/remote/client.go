// Package remote is the HTTP client of the lab service that stores
// topologies, emulates the network and runs packet diagnostics.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/version"
)

// BasePath prefixes every lab service route.
const BasePath = "/api/network"

const maxBodyBytes = 4 << 20

// Credentials is the client-persisted bearer credential.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	ClearCredentials(ctx context.Context) error
}

// Client calls the lab service. It never retries; every failure is
// reported to the caller as ErrAuthExpired, a *RejectedError, or the
// context error of a cancelled call.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	limiter *rate.Limiter
	metrics *Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests to r per second with the given burst.
// A non-positive r disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for the service at baseURL (scheme and host, no
// path).
func New(baseURL string, creds Credentials, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		limiter: rate.NewLimiter(rate.Inf, 0),
		now:     time.Now,
		logger:  logger.Named("remote"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends a JSON request to BasePath+path and decodes a 2xx body into out.
// endpoint is the low-cardinality label used for metrics and logs.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	if token == "" || auth.TokenExpired(token, c.now()) {
		c.expire(ctx, endpoint)
		return ErrAuthExpired
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+BasePath+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		mapped := mapTransportError(err)
		if mapped != err {
			c.metrics.observe(endpoint, outcomeUnreachable, time.Since(start))
			c.logger.Warn("lab service unreachable",
				zap.String("endpoint", endpoint),
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
		return mapped
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.observe(endpoint, outcomeUnreachable, time.Since(start))
		return mapTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.metrics.observe(endpoint, outcomeUnauthorized, time.Since(start))
		c.expire(ctx, endpoint)
		return ErrAuthExpired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.metrics.observe(endpoint, outcomeRejected, time.Since(start))
		rej := rejection(resp.StatusCode, data)
		c.logger.Debug("lab service rejected request",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("message", rej.Message),
		)
		return rej
	}

	c.metrics.observe(endpoint, outcomeOK, time.Since(start))
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RejectedError{
			StatusCode: resp.StatusCode,
			Message:    "unexpected response from server",
			Err:        fmt.Errorf("decode %s response: %w", endpoint, err),
		}
	}
	return nil
}

// expire clears the stored credential after the session ended.
func (c *Client) expire(ctx context.Context, endpoint string) {
	if err := c.creds.ClearCredentials(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("clear credentials", zap.Error(err))
	}
	c.logger.Info("session expired", zap.String("endpoint", endpoint))
}

// ack is the {"success": bool, "error": "..."} envelope some routes wrap
// their answers in, with HTTP 200 even on failure.
type ack struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a ack) err() error {
	if a.Success == nil || *a.Success {
		return nil
	}
	msg := a.Error
	if msg == "" {
		msg = a.Message
	}
	if msg == "" {
		msg = "operation failed"
	}
	return &RejectedError{StatusCode: http.StatusOK, Message: msg}
}
