package ticktick

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harrisonrobin/tickmirror/pkg/colors"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/reconcile"
)

const (
	batchProjectPath = "batch/project"
	batchFolderPath  = "batch/projectGroup"
)

// ProjectManager creates and changes projects and project folders.
type ProjectManager struct {
	c *Client
}

func payloadID(p model.ProjectPayload) string { return p.ID }

func entityID(e model.Entity) string { return e.ID() }

// Builder validates a new project. color may be empty, a hex value or "random"; kind is TASK
// (the default) or NOTE; folderID may be empty.
func (m *ProjectManager) Builder(name, color, kind, folderID string) (model.ProjectPayload, error) {
	if name == "" {
		return model.ProjectPayload{}, fmt.Errorf("project name is required: %w", model.ErrInvalidArgument)
	}
	res, err := m.c.store.QueryByFields(model.Projects, model.Fields{"name": name})
	if err != nil {
		return model.ProjectPayload{}, err
	}
	if !res.Empty() {
		return model.ProjectPayload{}, fmt.Errorf("project %q: %w", name, model.ErrConflict)
	}

	p := model.ProjectPayload{ID: model.NewObjectID(), Name: name}
	hex, err := colors.Resolve(color)
	if err != nil {
		return model.ProjectPayload{}, err
	}
	if hex != "" {
		p.Color = &hex
	}

	switch strings.ToUpper(kind) {
	case "", model.KindTask:
		p.Kind = model.KindTask
	case model.KindNote:
		p.Kind = model.KindNote
	default:
		return model.ProjectPayload{}, fmt.Errorf("project kind %q: %w", kind, model.ErrInvalidArgument)
	}

	if folderID != "" {
		folder, err := m.c.store.QueryByID(folderID, model.ProjectFolders)
		if err != nil {
			return model.ProjectPayload{}, err
		}
		if folder.Empty() {
			return model.ProjectPayload{}, fmt.Errorf("folder %s: %w", folderID, model.ErrNotFound)
		}
		p.GroupID = &folderID
	}
	return p, nil
}

// Create creates projects and returns them in the given order.
func (m *ProjectManager) Create(ctx context.Context, payloads ...model.ProjectPayload) (model.Result, error) {
	if len(payloads) == 0 {
		return model.Result{}, fmt.Errorf("no projects to create: %w", model.ErrInvalidArgument)
	}
	add := make([]model.ProjectPayload, len(payloads))
	for i, p := range payloads {
		if p.ID == "" {
			p.ID = model.NewObjectID()
		}
		if p.Kind == "" {
			p.Kind = model.KindTask
		}
		add[i] = p
	}

	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	resp, err := m.c.mutate(ctx, batchProjectPath, map[string]any{"add": add})
	if err != nil {
		return model.Result{}, err
	}
	if len(add) == 1 {
		return reconcile.ByID{Store: m.c.store, Collection: model.Projects}.Resolve(resp)
	}
	return reconcile.Batch(m.c.store, model.Projects, add, resp, payloadID)
}

// Update sends edited projects back and returns them in the given order.
func (m *ProjectManager) Update(ctx context.Context, projects ...model.Entity) (model.Result, error) {
	if len(projects) == 0 {
		return model.Result{}, fmt.Errorf("no projects to update: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.update(ctx, projects)
}

func (m *ProjectManager) update(ctx context.Context, projects []model.Entity) (model.Result, error) {
	resp, err := m.c.mutate(ctx, batchProjectPath, map[string]any{"update": projects})
	if err != nil {
		return model.Result{}, err
	}
	if len(projects) == 1 {
		return reconcile.ByID{Store: m.c.store, Collection: model.Projects}.Resolve(resp)
	}
	return reconcile.Batch(m.c.store, model.Projects, projects, resp, entityID)
}

// Archive closes projects.
func (m *ProjectManager) Archive(ctx context.Context, ids ...string) (model.Result, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	projects, err := m.lookup(model.Projects, ids)
	if err != nil {
		return model.Result{}, err
	}
	for i, p := range projects {
		obj := p.Clone()
		obj["closed"] = true
		projects[i] = obj
	}
	return m.update(ctx, projects)
}

// Delete deletes projects together with their tasks and returns the projects as they were
// mirrored before the deletion.
func (m *ProjectManager) Delete(ctx context.Context, ids ...string) (model.Result, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	projects, err := m.lookup(model.Projects, ids)
	if err != nil {
		return model.Result{}, err
	}
	if _, err := m.c.send(ctx, http.MethodPost, batchProjectPath, map[string]any{"delete": ids}, nil); err != nil {
		return model.Result{}, err
	}
	for _, id := range ids {
		if err := m.dropTasks(id); err != nil {
			return model.Result{}, err
		}
		if _, err := m.c.store.Remove(model.Projects, model.Fields{"id": id}); err != nil {
			return model.Result{}, err
		}
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return model.Result{}, err
	}
	return model.Collapse(projects), nil
}

func (m *ProjectManager) dropTasks(projectID string) error {
	for {
		_, err := m.c.store.Remove(model.Tasks, model.Fields{"projectId": projectID})
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// CreateFolder creates project folders and returns them in the given order.
func (m *ProjectManager) CreateFolder(ctx context.Context, names ...string) (model.Result, error) {
	if len(names) == 0 {
		return model.Result{}, fmt.Errorf("no folders to create: %w", model.ErrInvalidArgument)
	}
	payloads := make([]model.FolderPayload, len(names))
	for i, n := range names {
		if n == "" {
			return model.Result{}, fmt.Errorf("folder name is required: %w", model.ErrInvalidArgument)
		}
		payloads[i] = model.NewFolder(n)
	}

	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	for _, n := range names {
		res, err := m.c.store.QueryByFields(model.ProjectFolders, model.Fields{"name": n})
		if err != nil {
			return model.Result{}, err
		}
		if !res.Empty() {
			return model.Result{}, fmt.Errorf("folder %q: %w", n, model.ErrConflict)
		}
	}
	resp, err := m.c.mutate(ctx, batchFolderPath, map[string]any{"add": payloads})
	if err != nil {
		return model.Result{}, err
	}
	if len(payloads) == 1 {
		return reconcile.ByID{Store: m.c.store, Collection: model.ProjectFolders}.Resolve(resp)
	}
	return reconcile.ByRevision[model.FolderPayload]{
		Store:       m.c.store,
		Collection:  model.ProjectFolders,
		Candidates:  payloads,
		Key:         func(f model.FolderPayload) string { return f.Name },
		ResolvedKey: entityName,
	}.Resolve(resp)
}

// UpdateFolder sends edited folders back and returns them in the given order.
func (m *ProjectManager) UpdateFolder(ctx context.Context, folders ...model.Entity) (model.Result, error) {
	if len(folders) == 0 {
		return model.Result{}, fmt.Errorf("no folders to update: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	resp, err := m.c.mutate(ctx, batchFolderPath, map[string]any{"update": folders})
	if err != nil {
		return model.Result{}, err
	}
	if len(folders) == 1 {
		return reconcile.ByID{Store: m.c.store, Collection: model.ProjectFolders}.Resolve(resp)
	}
	return reconcile.Batch(m.c.store, model.ProjectFolders, folders, resp, entityID)
}

// DeleteFolder deletes folders and returns them as they were mirrored before the deletion.
// Projects inside a deleted folder are kept by the service.
func (m *ProjectManager) DeleteFolder(ctx context.Context, ids ...string) (model.Result, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	folders, err := m.lookup(model.ProjectFolders, ids)
	if err != nil {
		return model.Result{}, err
	}
	if _, err := m.c.mutate(ctx, batchFolderPath, map[string]any{"delete": ids}); err != nil {
		return model.Result{}, err
	}
	return model.Collapse(folders), nil
}

func (m *ProjectManager) lookup(collection string, ids []string) ([]model.Entity, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no %s given: %w", collection, model.ErrInvalidArgument)
	}
	out := make([]model.Entity, len(ids))
	for i, id := range ids {
		found, err := m.c.store.QueryByID(id, collection)
		if err != nil {
			return nil, err
		}
		if found.Empty() {
			return nil, fmt.Errorf("%s %s: %w", collection, id, model.ErrNotFound)
		}
		out[i] = found
	}
	return out, nil
}
