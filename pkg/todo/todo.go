// Package todo presents each project of the mirror as a to-do list.
package todo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/dates"
	"github.com/harrisonrobin/tickmirror/pkg/model"
)

// Status is the state of a to-do item.
type Status string

const (
	NeedsAction Status = "needs_action"
	Completed   Status = "completed"
)

// Status values as the service spells them.
const (
	apiNeedsAction = "needsAction"
	apiCompleted   = "completed"
)

// Item is one entry of a to-do list.
type Item struct {
	Summary     string
	UID         string
	Status      Status
	Due         *time.Time
	Description string
}

// List is the to-do view of one project.
type List struct {
	ProjectID string
	Name      string
	Items     []Item
}

func statusOf(task model.Entity) Status {
	v, _ := task.Get("status")
	switch {
	case v == apiCompleted, model.Equal(v, 2):
		return Completed
	}
	return NeedsAction
}

// FromTask converts a mirrored task. The due date is the calendar day of dueDate in loc.
func FromTask(task model.Entity, loc *time.Location) (Item, error) {
	item := Item{
		Summary:     task.Title(),
		UID:         task.ID(),
		Status:      statusOf(task),
		Description: task.String("content"),
	}
	if raw := task.String("dueDate"); raw != "" {
		due, err := dates.Parse(raw)
		if err != nil {
			return Item{}, fmt.Errorf("task %s: %w", task.ID(), err)
		}
		local := due.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		item.Due = &day
	}
	return item, nil
}

// ToPayload converts item to the fields sent to the service. The due date is the start of
// its day in loc.
func ToPayload(item Item, loc *time.Location) model.Fields {
	status := apiNeedsAction
	if item.Status == Completed {
		status = apiCompleted
	}
	out := model.Fields{
		"title":   item.Summary,
		"status":  status,
		"content": item.Description,
	}
	if item.UID != "" {
		out["id"] = item.UID
	}
	if item.Due != nil {
		d := item.Due.In(loc)
		out["dueDate"] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).Format(time.RFC3339)
	}
	return out
}

// Lists builds one list per project, in project name order. Tasks whose dueDate cannot be
// read are left out and reported in the returned error.
func Lists(projects, tasks []model.Entity, loc *time.Location) ([]List, error) {
	byProject := make(map[string][]model.Entity)
	for _, task := range tasks {
		byProject[task.Project()] = append(byProject[task.Project()], task)
	}

	var bad []string
	lists := make([]List, 0, len(projects))
	for _, p := range projects {
		l := List{ProjectID: p.ID(), Name: capitalize(p.Name())}
		for _, task := range byProject[p.ID()] {
			item, err := FromTask(task, loc)
			if err != nil {
				bad = append(bad, task.ID())
				continue
			}
			l.Items = append(l.Items, item)
		}
		lists = append(lists, l)
	}
	sort.SliceStable(lists, func(i, j int) bool { return lists[i].Name < lists[j].Name })

	if len(bad) > 0 {
		return lists, fmt.Errorf("unreadable due dates on tasks %s: %w", strings.Join(bad, ", "), model.ErrInvalidArgument)
	}
	return lists, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
