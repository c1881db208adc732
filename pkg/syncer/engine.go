// Package syncer refreshes the mirror from the service's full-state endpoint.
package syncer

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/store"
	"github.com/harrisonrobin/tickmirror/pkg/transport"
	"golang.org/x/sync/singleflight"
)

const (
	checkPath    = "batch/check/0"
	settingsPath = "user/preferences/settings"
)

// Auth supplies the cookie-auth headers and cookies of the current session.
type Auth interface {
	CookieAuth() transport.Request
}

// Engine performs full resyncs into a store.
type Engine struct {
	http    transport.Doer
	store   *store.Store
	baseURL string
	auth    Auth
	logger  *log.Logger

	group singleflight.Group
	mu    sync.Mutex
	count int
}

// New returns an engine that writes into s. baseURL ends with a slash.
func New(doer transport.Doer, s *store.Store, baseURL string, auth Auth, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{http: doer, store: s, baseURL: baseURL, auth: auth, logger: logger}
}

type checkResponse struct {
	InboxID         *string        `json:"inboxId"`
	ProjectGroups   []model.Entity `json:"projectGroups"`
	ProjectProfiles []model.Entity `json:"projectProfiles"`
	SyncTaskBean    struct {
		Update []model.Entity `json:"update"`
	} `json:"syncTaskBean"`
	Tags []model.Entity `json:"tags"`
}

// Refresh fetches the full remote state and replaces the mirror with it. On any failure the
// mirror keeps its previous contents.
func (e *Engine) Refresh(ctx context.Context) (*model.Snapshot, error) {
	body, err := e.http.Do(ctx, "GET", e.baseURL+checkPath, e.auth.CookieAuth())
	if err != nil {
		return nil, fmt.Errorf("full sync failed: %w", err)
	}
	var resp checkResponse
	if err := body.Decode(&resp); err != nil {
		return nil, fmt.Errorf("full sync failed: %w", err)
	}
	if resp.InboxID == nil {
		return nil, fmt.Errorf("full sync failed: response has no inboxId: %w", transport.ErrTransport)
	}

	snap := &model.Snapshot{
		InboxID:        *resp.InboxID,
		Projects:       resp.ProjectProfiles,
		ProjectFolders: resp.ProjectGroups,
		Tags:           resp.Tags,
		Tasks:          resp.SyncTaskBean.Update,
	}
	e.store.Replace(*snap)

	e.mu.Lock()
	e.count++
	n := e.count
	e.mu.Unlock()
	e.logger.Printf("Synced %d projects, %d folders, %d tags, %d tasks (refresh #%d)",
		len(snap.Projects), len(snap.ProjectFolders), len(snap.Tags), len(snap.Tasks), n)
	return snap, nil
}

// RefreshShared is Refresh with concurrent callers joined onto one in-flight call. A caller
// that just mutated remote state must use Refresh instead, since a shared call may have
// started before the mutation.
func (e *Engine) RefreshShared(ctx context.Context) (*model.Snapshot, error) {
	v, err, _ := e.group.Do("refresh", func() (any, error) {
		return e.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Snapshot), nil
}

// Refreshes returns how many refreshes completed.
func (e *Engine) Refreshes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Settings loads the user's time zone and profile id.
func (e *Engine) Settings(ctx context.Context) (model.Settings, error) {
	req := e.auth.CookieAuth()
	req.Query = url.Values{"includeWeb": {"true"}}
	body, err := e.http.Do(ctx, "GET", e.baseURL+settingsPath, req)
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	var s model.Settings
	if err := body.Decode(&s); err != nil {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}
