package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/dates"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// TaskIDProperty is the private extended property linking an event to its task.
const TaskIDProperty = "ticktick_id"

const defaultDuration = 30 * time.Minute

// Task status values of the service.
const (
	statusOpen      = 0
	statusCompleted = 2
)

// EventInput is what ConvertTask needs besides the task.
type EventInput struct {
	ProjectName string
	ColorID     string
	// TimeZone places all-day tasks on calendar days when the task carries no zone.
	TimeZone string
	Now      time.Time
}

// HasDates reports whether task can be placed on a calendar.
func HasDates(task model.Entity) bool {
	return task.String("startDate") != "" || task.String("dueDate") != ""
}

// ConvertTask builds the calendar event mirroring task.
func ConvertTask(task model.Entity, in EventInput) (*calendar.Event, error) {
	if task.ID() == "" {
		return nil, fmt.Errorf("could not convert a task without id")
	}
	startRaw, dueRaw := task.String("startDate"), task.String("dueDate")
	if startRaw == "" {
		startRaw = dueRaw
	}
	if startRaw == "" {
		return nil, fmt.Errorf("task has no start or due date: %s", task.ID())
	}
	start, err := dates.Parse(startRaw)
	if err != nil {
		return nil, err
	}
	var due *time.Time
	if dueRaw != "" {
		d, err := dates.Parse(dueRaw)
		if err != nil {
			return nil, err
		}
		due = &d
	}

	status := intField(task, "status")
	prefix := ""
	switch {
	case status == statusCompleted:
		prefix = "✓"
	case status == statusOpen && due != nil && due.Before(in.Now):
		prefix = "!"
	}
	summary := task.Title()
	if prefix != "" {
		summary = prefix + " " + summary
	}

	event := &calendar.Event{
		Summary:     summary,
		ColorId:     in.ColorID,
		Description: describe(task, in.ProjectName),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID()},
		},
	}

	if boolField(task, "isAllDay") || boolField(task, "allDay") {
		tz := task.String("timeZone")
		if tz == "" {
			tz = in.TimeZone
		}
		loc, err := dates.Location(tz)
		if err != nil {
			return nil, err
		}
		first := start.In(loc)
		last := dates.NextDay(time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc))
		if due != nil && due.After(start) {
			last = due.In(loc)
		}
		event.Start = &calendar.EventDateTime{Date: first.Format("2006-01-02")}
		event.End = &calendar.EventDateTime{Date: last.Format("2006-01-02")}
		return event, nil
	}

	end := start.Add(defaultDuration)
	if due != nil && due.After(start) {
		end = *due
	}
	event.Start = &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)}
	return event, nil
}

func describe(task model.Entity, projectName string) string {
	var b strings.Builder
	if tags, ok := task["tags"].([]any); ok && len(tags) > 0 {
		for _, tag := range tags {
			fmt.Fprintf(&b, "#%v ", tag)
		}
		b.WriteString("\n\n")
	}
	if content := task.String("content"); content != "" {
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	if items, ok := task["items"].([]any); ok && len(items) > 0 {
		b.WriteString("Checklist:\n")
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			mark := "‣"
			if model.Equal(item["status"], 1) {
				mark = "✓"
			}
			fmt.Fprintf(&b, "%s %v\n", mark, item["title"])
		}
		b.WriteString("\n")
	}
	if projectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", projectName)
	}
	fmt.Fprintf(&b, "ID: %s\n", task.ID())
	return b.String()
}

// EventNeedsUpdate returns a patch when the fields shared between the target event and the
// existing one differ, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameTime(existing.Start, target.Start)
	if err != nil {
		return nil, err
	}
	if same {
		same, err = sameTime(existing.End, target.End)
		if err != nil {
			return nil, err
		}
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTime(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	if a.Date != "" || b.Date != "" {
		return a.Date == b.Date, nil
	}
	ta, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	tb, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

func intField(e model.Entity, field string) int {
	v, _ := e.Get(field)
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return -1
}

func boolField(e model.Entity, field string) bool {
	v, _ := e.Get(field)
	b, _ := v.(bool)
	return b
}
