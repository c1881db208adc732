// Package google mirrors dated tasks into a Google Calendar.
package google

import (
	"context"
	"fmt"
	"log"

	"github.com/harrisonrobin/tickmirror/pkg/index"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient is a Google Calendar API client bound to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
}

// NewCalendarClient creates a client for calendarID.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx}
}

// FindCalendar returns the id of the calendar whose summary is name.
func FindCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s': %w", name, model.ErrNotFound)
}

// SyncEvent creates the event of taskID or patches the existing one when it differs. The
// returned flag tells whether anything was written.
func (c *CalendarClient) SyncEvent(ctx context.Context, taskID string, event *calendar.Event) (*calendar.Event, bool, error) {
	var existing *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			found, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && found.Status != "cancelled" {
				existing = found
			}
		}
	}
	if existing == nil {
		found, err := c.GetEventByTaskID(ctx, taskID)
		if err != nil {
			return nil, false, fmt.Errorf("error searching for event: %w", err)
		}
		existing = found
	}

	if existing != nil {
		patch, err := EventNeedsUpdate(existing, event)
		if err != nil {
			log.Printf("could not compare task %s with its calendar event: %v", taskID, err)
			return nil, false, err
		}
		if c.index != nil {
			c.index.Set(taskID, existing.Id)
		}
		if patch == nil {
			return existing, false, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		return updated, err == nil, err
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, false, err
	}
	if c.index != nil {
		c.index.Set(taskID, created.Id)
	}
	return created, true, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID searches for the event carrying taskID in its private properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
