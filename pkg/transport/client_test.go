package transport

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func quietClient(p Policy) (*Client, *[]time.Duration) {
	c := NewClient(nil, p, log.New(io.Discard, "", 0))
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func TestRetryThenSucceed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c, waits := quietClient(DefaultPolicy())
	body, err := c.Get(context.Background(), srv.URL, Request{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var out struct{ OK bool }
	if err := body.Decode(&out); err != nil || !out.OK {
		t.Errorf("Expected ok body, got %q (%v)", body.Text(), err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(*waits) != 2 || (*waits)[0] != time.Second || (*waits)[1] != 2*time.Second {
		t.Errorf("Expected backoff of 1s then 2s, got %v", *waits)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	}))
	defer srv.Close()

	c, _ := quietClient(DefaultPolicy())
	_, err := c.Post(context.Background(), srv.URL, Request{JSON: map[string]string{"a": "b"}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", statusErr.Status)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Expected error to wrap ErrTransport")
	}
	if calls != 4 {
		t.Errorf("Expected 1 call plus 3 retries, got %d", calls)
	}
}

func TestNonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := quietClient(DefaultPolicy())
	if _, err := c.Delete(context.Background(), srv.URL, Request{}); !errors.Is(err, ErrTransport) {
		t.Errorf("Expected transport error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single call for 404, got %d", calls)
	}
}

func TestHeadersCookiesAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Expected bearer header, got %q", r.Header.Get("Authorization"))
		}
		if c, err := r.Cookie("t"); err != nil || c.Value != "session" {
			t.Errorf("Expected session cookie, got %v (%v)", c, err)
		}
		if r.URL.Query().Get("includeWeb") != "true" {
			t.Errorf("Expected includeWeb query, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		io.WriteString(w, "plain text")
	}))
	defer srv.Close()

	c, _ := quietClient(DefaultPolicy())
	body, err := c.Put(context.Background(), srv.URL, Request{
		JSON:    map[string]string{"k": "v"},
		Query:   url.Values{"includeWeb": {"true"}},
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Cookies: map[string]string{"t": "session"},
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if body.JSON {
		t.Errorf("Expected a text body")
	}
	if body.Text() != "plain text" {
		t.Errorf("Expected 'plain text', got %q", body.Text())
	}
	var v map[string]any
	if err := body.Decode(&v); !errors.Is(err, ErrTransport) {
		t.Errorf("Expected decoding a text body to fail with ErrTransport, got %v", err)
	}
}

func TestMethodNotInPolicyIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := DefaultPolicy()
	p.Methods = []string{http.MethodGet}
	c, _ := quietClient(p)
	if _, err := c.Post(context.Background(), srv.URL, Request{}); err == nil {
		t.Fatalf("Expected an error")
	}
	if calls != 1 {
		t.Errorf("Expected POST not to be retried, got %d calls", calls)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := NewClient(nil, DefaultPolicy(), log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	if _, err := c.Get(ctx, srv.URL, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{Backoff: 500 * time.Millisecond}
	if d := p.delay(3); d != 2*time.Second {
		t.Errorf("Expected 2s for third retry, got %v", d)
	}
	if d := (Policy{}).delay(2); d != 0 {
		t.Errorf("Expected no delay without a backoff factor, got %v", d)
	}
}
