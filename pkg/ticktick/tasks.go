package ticktick

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/dates"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/reconcile"
)

const (
	openTaskPath      = "/open/v1/task"
	batchTaskPath     = "batch/task"
	taskParentPath    = "batch/taskParent"
	taskProjectPath   = "batch/taskProject"
	completedPath     = "project/all/completed"
	completedPageSize = 100
)

// Task priorities accepted by the service.
const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityMedium = 3
	PriorityHigh   = 5
)

// TaskSpec describes a task to build.
type TaskSpec struct {
	Title     string
	ProjectID string
	Content   string
	Desc      string
	// AllDay overrides the computed all-day flag.
	AllDay    *bool
	Start     *time.Time
	Due       *time.Time
	TimeZone  string
	Reminders []string
	Repeat    string
	Priority  int
	SortOrder *int64
	Items     []model.Fields
}

// TaskManager creates and changes tasks.
type TaskManager struct {
	c *Client
}

// Builder validates spec and returns the payload to send.
func (m *TaskManager) Builder(spec TaskSpec) (model.TaskPayload, error) {
	if spec.Title == "" {
		return model.TaskPayload{}, fmt.Errorf("task title is required: %w", model.ErrInvalidArgument)
	}
	switch spec.Priority {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return model.TaskPayload{}, fmt.Errorf("priority %d is not one of 0, 1, 3, 5: %w", spec.Priority, model.ErrInvalidArgument)
	}

	p := model.TaskPayload{
		Title:     spec.Title,
		Content:   spec.Content,
		Desc:      spec.Desc,
		Reminders: spec.Reminders,
		Repeat:    spec.Repeat,
		SortOrder: spec.SortOrder,
		Items:     spec.Items,
	}
	if spec.Priority != PriorityNone {
		prio := spec.Priority
		p.Priority = &prio
	}

	if spec.ProjectID != "" {
		project := m.c.resolveProject(spec.ProjectID)
		if project != m.c.InboxID() {
			found, err := m.c.store.QueryByID(project, model.Projects)
			if err != nil {
				return model.TaskPayload{}, err
			}
			if found.Empty() {
				return model.TaskPayload{}, fmt.Errorf("project %s: %w", spec.ProjectID, model.ErrNotFound)
			}
		}
		p.ProjectID = project
	}

	switch {
	case spec.Start != nil:
		r, err := m.Dates(*spec.Start, spec.Due, spec.TimeZone)
		if err != nil {
			return model.TaskPayload{}, err
		}
		allDay := r.AllDay
		p.StartDate, p.DueDate, p.AllDay, p.TimeZone = r.StartDate, r.DueDate, &allDay, r.TimeZone
	case spec.Due != nil:
		return model.TaskPayload{}, fmt.Errorf("a due date needs a start date: %w", model.ErrInvalidArgument)
	case spec.TimeZone != "":
		if _, err := dates.Location(spec.TimeZone); err != nil {
			return model.TaskPayload{}, err
		}
		p.TimeZone = spec.TimeZone
	}
	if spec.AllDay != nil {
		allDay := *spec.AllDay
		p.AllDay = &allDay
	}
	return p, nil
}

// Dates computes the date fields for start and due in tz, or in the account's zone.
func (m *TaskManager) Dates(start time.Time, due *time.Time, tz string) (dates.Range, error) {
	return dates.Build(start, due, tz, m.c.TimeZone())
}

// Create creates one task through the open API and returns it as mirrored after the sync.
func (m *TaskManager) Create(ctx context.Context, p model.TaskPayload) (model.Entity, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.openWrite(ctx, m.c.openURL+openTaskPath, p)
}

// Update sends the full task back through the open API.
func (m *TaskManager) Update(ctx context.Context, task model.Entity) (model.Entity, error) {
	if task.ID() == "" {
		return nil, fmt.Errorf("task has no id: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.openWrite(ctx, m.c.openURL+openTaskPath+"/"+url.PathEscape(task.ID()), task)
}

func (m *TaskManager) openWrite(ctx context.Context, target string, payload any) (model.Entity, error) {
	req, err := m.c.bearerAuth()
	if err != nil {
		return nil, err
	}
	req.JSON = payload
	body, err := m.c.http.Do(ctx, http.MethodPost, target, req)
	if err != nil {
		return nil, err
	}
	var accepted model.Entity
	if err := body.Decode(&accepted); err != nil {
		return nil, err
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	id := accepted.ID()
	if id == "" {
		return nil, fmt.Errorf("task write returned no id: %w", model.ErrReconciliationMismatch)
	}
	found, err := m.c.store.QueryByID(id, model.Tasks)
	if err != nil {
		return nil, err
	}
	if found.Empty() {
		return nil, fmt.Errorf("task %s accepted but absent after sync: %w", id, model.ErrReconciliationMismatch)
	}
	return found, nil
}

// CreateBatch creates several tasks in one request and returns them in the given order.
func (m *TaskManager) CreateBatch(ctx context.Context, payloads ...model.TaskPayload) (model.Result, error) {
	if len(payloads) == 0 {
		return model.Result{}, fmt.Errorf("no tasks to create: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	add := make([]model.TaskPayload, len(payloads))
	for i, p := range payloads {
		if p.ID == "" {
			p.ID = model.NewObjectID()
		}
		if p.ProjectID == "" {
			p.ProjectID = m.c.InboxID()
		}
		add[i] = p
	}
	resp, err := m.c.mutate(ctx, batchTaskPath, map[string]any{"add": add})
	if err != nil {
		return model.Result{}, err
	}
	return reconcile.Batch(m.c.store, model.Tasks, add, resp, func(p model.TaskPayload) string { return p.ID })
}

// Complete marks task as done.
func (m *TaskManager) Complete(ctx context.Context, task model.Entity) (model.Entity, error) {
	if task.ID() == "" || task.Project() == "" {
		return nil, fmt.Errorf("task needs an id and a projectId: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	req, err := m.c.bearerAuth()
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/open/v1/project/%s/task/%s/complete", m.c.openURL,
		url.PathEscape(m.c.resolveProject(task.Project())), url.PathEscape(task.ID()))
	body, err := m.c.http.Do(ctx, http.MethodPost, target, req)
	if err != nil {
		return nil, err
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	if body.Empty() {
		return task, nil
	}
	var done model.Entity
	if err := body.Decode(&done); err != nil {
		m.c.logger.Printf("Warning: unexpected completion answer for task %s: %v: %q", task.ID(), err, body.Raw)
		return task, nil
	}
	if done.Empty() {
		return task, nil
	}
	return done, nil
}

// Delete deletes tasks and returns them as they were passed in.
func (m *TaskManager) Delete(ctx context.Context, tasks ...model.Entity) (model.Result, error) {
	if len(tasks) == 0 {
		return model.Result{}, fmt.Errorf("no tasks to delete: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	refs := make([]model.TaskRef, len(tasks))
	for i, t := range tasks {
		if t.ID() == "" {
			return model.Result{}, fmt.Errorf("task %d has no id: %w", i, model.ErrInvalidArgument)
		}
		project := t.Project()
		if project == "" || project == model.InboxAlias {
			project = m.c.InboxID()
		}
		refs[i] = model.TaskRef{ProjectID: project, TaskID: t.ID()}
	}
	if _, err := m.c.mutate(ctx, batchTaskPath, map[string]any{"delete": refs}); err != nil {
		return model.Result{}, err
	}
	return model.Collapse(tasks), nil
}

// MakeSubtask nests tasks under parentID. All tasks must live in the parent's project.
func (m *TaskManager) MakeSubtask(ctx context.Context, tasks []model.Entity, parentID string) (model.Result, error) {
	if len(tasks) == 0 {
		return model.Result{}, fmt.Errorf("no tasks to nest: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	parent, err := m.c.store.QueryByID(parentID, model.Tasks)
	if err != nil {
		return model.Result{}, err
	}
	if parent.Empty() {
		return model.Result{}, fmt.Errorf("parent task %s: %w", parentID, model.ErrNotFound)
	}
	links := make([]model.TaskParent, len(tasks))
	for i, t := range tasks {
		if t.Project() != parent.Project() {
			return model.Result{}, fmt.Errorf("task %s is in project %s, parent is in %s: %w", t.ID(), t.Project(), parent.Project(), model.ErrInvalidArgument)
		}
		if t.ID() == parentID {
			return model.Result{}, fmt.Errorf("task %s cannot be its own parent: %w", parentID, model.ErrInvalidArgument)
		}
		links[i] = model.TaskParent{ParentID: parentID, ProjectID: parent.Project(), TaskID: t.ID()}
	}
	if _, err := m.c.mutate(ctx, taskParentPath, links); err != nil {
		return model.Result{}, err
	}
	return m.readBack(tasks)
}

// Move moves tasks, which must share one project, into projectID.
func (m *TaskManager) Move(ctx context.Context, tasks []model.Entity, projectID string) (model.Result, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.move(ctx, tasks, projectID)
}

func (m *TaskManager) move(ctx context.Context, tasks []model.Entity, projectID string) (model.Result, error) {
	if len(tasks) == 0 {
		return model.Result{}, fmt.Errorf("no tasks to move: %w", model.ErrInvalidArgument)
	}
	target := m.c.resolveProject(projectID)
	if target != m.c.InboxID() {
		found, err := m.c.store.QueryByID(target, model.Projects)
		if err != nil {
			return model.Result{}, err
		}
		if found.Empty() {
			return model.Result{}, fmt.Errorf("project %s: %w", projectID, model.ErrNotFound)
		}
	}

	from := tasks[0].Project()
	moves := make([]model.TaskMove, len(tasks))
	for i, t := range tasks {
		if t.Project() != from {
			return model.Result{}, fmt.Errorf("tasks span projects %s and %s: %w", from, t.Project(), model.ErrInvalidArgument)
		}
		moves[i] = model.TaskMove{FromProjectID: from, TaskID: t.ID(), ToProjectID: target}
	}
	if _, err := m.c.mutate(ctx, taskProjectPath, moves); err != nil {
		return model.Result{}, err
	}
	return m.readBack(tasks)
}

// MoveAll moves every task of from into to. Moving an empty project returns an empty result.
func (m *TaskManager) MoveAll(ctx context.Context, from, to string) (model.Result, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	tasks, err := m.GetFromProject(from)
	if err != nil {
		return model.Result{}, err
	}
	if tasks.Empty() {
		return tasks, nil
	}
	return m.move(ctx, tasks.All(), to)
}

// GetFromProject returns the mirrored tasks of projectID.
func (m *TaskManager) GetFromProject(projectID string) (model.Result, error) {
	project := m.c.resolveProject(projectID)
	if project != m.c.InboxID() {
		found, err := m.c.store.QueryByID(project, model.Projects)
		if err != nil {
			return model.Result{}, err
		}
		if found.Empty() {
			return model.Result{}, fmt.Errorf("project %s: %w", projectID, model.ErrNotFound)
		}
	}
	return m.c.store.QueryByFields(model.Tasks, model.Fields{"projectId": project})
}

// GetCompleted returns up to one page of tasks completed between start and end. Without an
// end the whole start day is used. tz defaults to the account's zone.
func (m *TaskManager) GetCompleted(ctx context.Context, start time.Time, end *time.Time, full bool, tz string) ([]model.Entity, error) {
	if tz == "" {
		tz = m.c.TimeZone()
	}
	from, to, err := dates.CompletedWindow(start, end, full, tz)
	if err != nil {
		return nil, err
	}
	query := url.Values{"from": {from}, "to": {to}, "limit": {strconv.Itoa(completedPageSize)}}

	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	body, err := m.c.send(ctx, http.MethodGet, completedPath, nil, query)
	if err != nil {
		return nil, err
	}
	var tasks []model.Entity
	if err := body.Decode(&tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (m *TaskManager) readBack(tasks []model.Entity) (model.Result, error) {
	out := make([]model.Entity, len(tasks))
	for i, t := range tasks {
		found, err := m.c.store.QueryByID(t.ID(), model.Tasks)
		if err != nil {
			return model.Result{}, err
		}
		if found.Empty() {
			return model.Result{}, fmt.Errorf("task %s absent after sync: %w", t.ID(), model.ErrReconciliationMismatch)
		}
		out[i] = found
	}
	return model.Collapse(out), nil
}
