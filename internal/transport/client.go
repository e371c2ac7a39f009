package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1000 * time.Millisecond
	DefaultMaxDelay   = 10000 * time.Millisecond

	maxResponseBody = 8 << 20 // 8MB
)

// ErrInvalidJSON is returned when a 2xx response declares JSON but does not
// carry a valid document. It is not retried.
var ErrInvalidJSON = errors.New("invalid json response body")

// Request is one logical outbound call; the client may issue it several
// times.
type Request struct {
	Endpoint string
	Method   string
	Header   map[string]string
	Body     []byte

	// Timeout bounds each attempt; 0 means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt; 0 means
	// DefaultMaxRetries, a negative value disables retries.
	MaxRetries int
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	json       bool
}

// IsJSON reports whether the reply declared a JSON content type.
func (r *Response) IsJSON() bool { return r.json }

// JSON returns the parsed JSON document (an empty result for non-JSON replies).
func (r *Response) JSON() gjson.Result {
	if !r.json {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// Text returns the body as raw text; channels answering XML/SOAP are read this way.
func (r *Response) Text() string { return string(r.Body) }

// Observer receives per-attempt telemetry.
type Observer interface {
	ObserveAttempt(client string, statusCode int, err error, elapsed time.Duration)
	ObserveRetry(client string)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int, error, time.Duration) {}
func (nopObserver) ObserveRetry(string)                              {}

// BreakerOptions enables the optional circuit breaker.
type BreakerOptions struct {
	// ConsecutiveFailures opens the circuit; default 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing; default 30s.
	OpenTimeout time.Duration
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Breaker    *BreakerOptions // nil disables the breaker
	Observer   Observer

	// Sleep waits between attempts; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client executes outbound requests with per-attempt timeout, retry with
// capped exponential backoff, and an optional circuit breaker. One Client
// is owned by one connector.
type Client struct {
	log     *zap.Logger
	name    string
	http    *http.Client
	opts    Options
	breaker *gobreaker.CircuitBreaker
}

// New builds a client named after the channel type it serves.
func New(log *zap.Logger, name string, opts Options) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("transport").With(zap.String("client", name))

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}

	c := &Client{
		log:  log,
		name: name,
		http: opts.HTTPClient,
		opts: opts,
	}
	if opts.Breaker != nil {
		c.breaker = newBreaker(log, name, *opts.Breaker)
	}
	return c
}

func newBreaker(log *zap.Logger, name string, bo BreakerOptions) *gobreaker.CircuitBreaker {
	if bo.ConsecutiveFailures == 0 {
		bo.ConsecutiveFailures = 5
	}
	if bo.OpenTimeout <= 0 {
		bo.OpenTimeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bo.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bo.ConsecutiveFailures
		},
		// The remote answered; a rejected payload says nothing about its health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, ErrInvalidJSON) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// Name is the client (channel type) name used in logs and metrics.
func (c *Client) Name() string { return c.name }

// Do executes req, retrying transient failures. Non-2xx replies surface as
// *HTTPError; 400/401/403/404 are returned after the first attempt.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(ctx, req)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

func (c *Client) doWithRetry(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}
	retries := req.MaxRetries
	if retries == 0 {
		retries = c.opts.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	attempts := retries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		resp, err := c.attempt(ctx, req, timeout)
		c.opts.Observer.ObserveAttempt(c.name, statusOf(resp, err), err, time.Since(start))
		if err == nil {
			c.log.Debug("request ok",
				zap.String("method", req.Method),
				zap.String("endpoint", req.Endpoint),
				zap.Int("attempt", attempt+1),
				zap.Int("status", resp.StatusCode),
			)
			return resp, nil
		}
		lastErr = err

		if !c.retryable(ctx, err) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := c.Backoff(attempt)
		c.log.Warn("request failed; retrying",
			zap.String("method", req.Method),
			zap.String("endpoint", req.Endpoint),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		c.opts.Observer.ObserveRetry(c.name)
		if err := c.opts.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("backoff interrupted: %w (last error: %v)", err, lastErr)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// retryable reports whether another attempt may help. Permanent statuses,
// undecodable bodies and a cancelled caller context end the loop.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if IsPermanent(err) || errors.Is(err, ErrInvalidJSON) {
		return false
	}
	return ctx.Err() == nil
}

// Backoff returns the delay after failed attempt n (0-based):
// min(BaseDelay * 2^n, MaxDelay).
func (c *Client) Backoff(n int) time.Duration {
	d := c.opts.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= c.opts.MaxDelay || d <= 0 {
			return c.opts.MaxDelay
		}
	}
	if d > c.opts.MaxDelay {
		return c.opts.MaxDelay
	}
	return d
}

func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(actx, req.Method, req.Endpoint, body)
	if err != nil {
		// A malformed endpoint will not get better on retry.
		return nil, &HTTPError{StatusCode: http.StatusBadRequest, Body: err.Error(), Endpoint: req.Endpoint}
	}
	for k, v := range req.Header {
		hreq.Header.Set(k, v)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Endpoint, err)
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: hresp.StatusCode, Body: string(raw), Endpoint: req.Endpoint}
	}

	resp := &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       raw,
		json:       isJSON(hresp.Header.Get("Content-Type")),
	}
	if resp.json && len(bytes.TrimSpace(raw)) > 0 && !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Endpoint, ErrInvalidJSON)
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func statusOf(resp *Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	return StatusCode(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
