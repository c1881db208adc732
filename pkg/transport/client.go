// Package transport is the retrying HTTP client used to talk to the remote service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/matryer/try"
)

const (
	defaultHTTPTimeout        = 60 * time.Second
	defaultHTTPConnectTimeout = 5 * time.Second
	defaultHTTPTLSTimeout     = 5 * time.Second
)

// ErrTransport marks every failure that comes from the wire: exhausted retries, non-2xx
// answers and bodies that should have been JSON but were not.
var ErrTransport = errors.New("transport error")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// Policy configures which failures are retried and how long to wait between attempts.
type Policy struct {
	Retries  int
	Backoff  time.Duration
	Statuses []int
	Methods  []string
}

// DefaultPolicy retries three times with a one second backoff factor.
func DefaultPolicy() Policy {
	return Policy{
		Retries:  3,
		Backoff:  time.Second,
		Statuses: []int{http.StatusMethodNotAllowed, http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout},
		Methods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}
}

// delay is the wait before retry n (1-based): Backoff * 2^(n-1).
func (p Policy) delay(n int) time.Duration {
	if n < 1 || p.Backoff <= 0 {
		return 0
	}
	return time.Duration(float64(p.Backoff) * math.Pow(2, float64(n-1)))
}

func (p Policy) retryStatus(status int) bool {
	for _, s := range p.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (p Policy) retryMethod(method string) bool {
	for _, m := range p.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Request carries the optional parts of a call.
type Request struct {
	JSON    any
	Query   url.Values
	Headers map[string]string
	Cookies map[string]string
}

// Body is a response body, parsed lazily.
type Body struct {
	Raw    []byte
	Status int
	JSON   bool
}

// Text returns the body as a string.
func (b *Body) Text() string { return string(b.Raw) }

// Empty reports whether the service returned no content.
func (b *Body) Empty() bool { return len(bytes.TrimSpace(b.Raw)) == 0 }

// Decode unmarshals a JSON body into v.
func (b *Body) Decode(v any) error {
	if !b.JSON {
		return fmt.Errorf("expected JSON body, got %q: %w", truncate(b.Text(), 120), ErrTransport)
	}
	if err := json.Unmarshal(b.Raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %v: %w", err, ErrTransport)
	}
	return nil
}

// Doer performs one logical call, retries included.
type Doer interface {
	Do(ctx context.Context, method, rawURL string, req Request) (*Body, error)
}

// Client is a Doer backed by net/http.
type Client struct {
	http   *http.Client
	policy Policy
	logger *log.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewClient returns a client using policy. A nil httpClient gets explicit dial and TLS
// timeouts; a nil logger writes to stderr.
func NewClient(httpClient *http.Client, policy Policy, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[transport] ", log.LstdFlags)
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	// try.Do refuses attempts beyond its package limit.
	if policy.Retries+1 > try.MaxRetries {
		policy.Retries = try.MaxRetries - 1
	}
	return &Client{http: httpClient, policy: policy, logger: logger, sleep: sleepCtx}
}

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHTTPTimeout,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do sends the request, retrying transient failures according to the policy.
func (c *Client) Do(ctx context.Context, method, rawURL string, req Request) (*Body, error) {
	var payload []byte
	if req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = b
	}
	target, err := withQuery(rawURL, req.Query)
	if err != nil {
		return nil, err
	}

	retryable := c.policy.retryMethod(method)
	var body *Body
	err = try.Do(func(attempt int) (bool, error) {
		if attempt > 1 {
			if err := c.sleep(ctx, c.policy.delay(attempt-1)); err != nil {
				return false, err
			}
		}
		more := retryable && attempt <= c.policy.Retries

		var callErr error
		body, callErr = c.once(ctx, method, target, payload, req)
		if callErr != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			if more {
				c.logger.Printf("Warning: %s %s attempt %d failed: %v", method, target, attempt, callErr)
			}
			return more, fmt.Errorf("%s %s: %v: %w", method, target, callErr, ErrTransport)
		}
		if body.Status < 200 || body.Status > 299 {
			statusErr := &StatusError{Method: method, URL: target, Status: body.Status, Body: truncate(body.Text(), 512)}
			if more && c.policy.retryStatus(body.Status) {
				c.logger.Printf("Warning: %s %s attempt %d returned %d, retrying", method, target, attempt, body.Status)
				return true, statusErr
			}
			return false, statusErr
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, req Request) (*Body, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Body{Raw: raw, Status: resp.StatusCode, JSON: json.Valid(raw) && len(bytes.TrimSpace(raw)) > 0}, nil
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, rawURL string, req Request) (*Body, error) {
	return c.Do(ctx, http.MethodGet, rawURL, req)
}

// Post issues a POST.
func (c *Client) Post(ctx context.Context, rawURL string, req Request) (*Body, error) {
	return c.Do(ctx, http.MethodPost, rawURL, req)
}

// Put issues a PUT.
func (c *Client) Put(ctx context.Context, rawURL string, req Request) (*Body, error) {
	return c.Do(ctx, http.MethodPut, rawURL, req)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, rawURL string, req Request) (*Body, error) {
	return c.Do(ctx, http.MethodDelete, rawURL, req)
}

func withQuery(rawURL string, q url.Values) (string, error) {
	if len(q) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	merged := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			merged.Set(k, v)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
