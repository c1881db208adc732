// Package ticktick is the stateful session against the TickTick service: it logs in, keeps
// the mirror fresh and exposes the task, tag and project managers.
package ticktick

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/reconcile"
	"github.com/harrisonrobin/tickmirror/pkg/store"
	"github.com/harrisonrobin/tickmirror/pkg/syncer"
	"github.com/harrisonrobin/tickmirror/pkg/transport"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.ticktick.com/api/v2/"
	DefaultOpenAPIURL = "https://api.ticktick.com"

	userAgent = "Mozilla/5.0 (rv:95.0) Firefox/95.0"
	loginPath = "user/signon"
)

// Options configures a session.
type Options struct {
	Username string
	Password string

	BaseURL    string
	OpenAPIURL string

	// TokenSource provides the bearer token of the open API task endpoints.
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
	Policy      *transport.Policy
	Logger      *log.Logger
}

// Client is a logged-in session. Every manager operation holds mu from the mutation until
// the read-back, so concurrent callers never observe each other's half-applied state.
type Client struct {
	mu sync.Mutex

	http    transport.Doer
	baseURL string
	openURL string
	tokens  oauth2.TokenSource
	logger  *log.Logger

	store    *store.Store
	engine   *syncer.Engine
	headers  map[string]string
	token    string
	settings model.Settings

	Tasks    *TaskManager
	Tags     *TagManager
	Projects *ProjectManager
}

// New logs in, loads the account settings and performs the first full sync.
func New(ctx context.Context, opts Options) (*Client, error) {
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if err := c.login(ctx, opts.Username, opts.Password); err != nil {
		return nil, err
	}
	settings, err := c.engine.Settings(ctx)
	if err != nil {
		return nil, err
	}
	c.settings = settings
	if _, err := c.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	c.logger.Printf("Logged in as %s (time zone %s, inbox %s)", opts.Username, settings.TimeZone, c.store.InboxID())
	return c, nil
}

func newClient(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[ticktick] ", log.LstdFlags)
	}
	policy := transport.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	openURL := strings.TrimSuffix(opts.OpenAPIURL, "/")
	if openURL == "" {
		openURL = DefaultOpenAPIURL
	}

	device, err := json.Marshal(map[string]any{
		"platform": "web",
		"os":       "OS X",
		"device":   "Firefox 95.0",
		"name":     "tickmirror",
		"version":  4531,
		"id":       strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		"channel":  "website",
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:    transport.NewClient(opts.HTTPClient, policy, logger),
		baseURL: baseURL,
		openURL: openURL,
		tokens:  opts.TokenSource,
		logger:  logger,
		store:   store.New(),
		headers: map[string]string{"User-Agent": userAgent, "x-device": string(device)},
	}
	c.engine = syncer.New(c.http, c.store, baseURL, c, logger)
	c.Tasks = &TaskManager{c: c}
	c.Tags = &TagManager{c: c}
	c.Projects = &ProjectManager{c: c}
	return c, nil
}

func (c *Client) login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required: %w", model.ErrInvalidArgument)
	}
	req := transport.Request{
		JSON:    map[string]string{"username": username, "password": password},
		Query:   url.Values{"wc": {"true"}, "remember": {"true"}},
		Headers: c.headers,
	}
	body, err := c.http.Do(ctx, http.MethodPost, c.baseURL+loginPath, req)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := body.Decode(&resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login failed: no session token in response: %w", transport.ErrTransport)
	}
	c.token = resp.Token
	return nil
}

// CookieAuth returns the headers and session cookie of the cookie-authenticated endpoints.
func (c *Client) CookieAuth() transport.Request {
	return transport.Request{Headers: c.headers, Cookies: map[string]string{"t": c.token}}
}

func (c *Client) bearerAuth() (transport.Request, error) {
	if c.tokens == nil {
		return transport.Request{}, fmt.Errorf("open API access token is not configured: %w", model.ErrInvalidArgument)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return transport.Request{}, fmt.Errorf("failed to get access token: %w", err)
	}
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers["Authorization"] = tok.Type() + " " + tok.AccessToken
	return transport.Request{Headers: headers}, nil
}

// Sync refreshes the mirror.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.engine.Refresh(ctx)
	return err
}

// Store returns the mirror.
func (c *Client) Store() *store.Store { return c.store }

// RefreshShared refreshes the mirror for pollers. Concurrent pollers share one request,
// and a refresh never lands between a mutation and its read-back.
func (c *Client) RefreshShared(ctx context.Context) (*model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.RefreshShared(ctx)
}

// InboxID returns the real id of the inbox project.
func (c *Client) InboxID() string { return c.store.InboxID() }

// TimeZone returns the account's time zone.
func (c *Client) TimeZone() string { return c.settings.TimeZone }

// ProfileID returns the account's profile id.
func (c *Client) ProfileID() string { return c.settings.ProfileID }

// resolveProject maps the inbox alias to the real inbox id.
func (c *Client) resolveProject(id string) string {
	if id == model.InboxAlias {
		return c.store.InboxID()
	}
	return id
}

// send issues a cookie-authenticated call. The caller holds mu.
func (c *Client) send(ctx context.Context, method, path string, payload any, query url.Values) (*transport.Body, error) {
	req := c.CookieAuth()
	req.JSON = payload
	req.Query = query
	return c.http.Do(ctx, method, c.baseURL+path, req)
}

// mutate posts a batch mutation, refreshes the mirror and returns the acknowledgement.
// The caller holds mu.
func (c *Client) mutate(ctx context.Context, path string, payload any) (reconcile.Response, error) {
	body, err := c.send(ctx, http.MethodPost, path, payload, nil)
	if err != nil {
		return reconcile.Response{}, err
	}
	if _, err := c.engine.Refresh(ctx); err != nil {
		return reconcile.Response{}, err
	}
	if body.Empty() {
		return reconcile.Response{ID2Etag: map[string]string{}}, nil
	}
	return reconcile.Decode(body)
}
