package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/colors"
	"github.com/harrisonrobin/tickmirror/pkg/index"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"google.golang.org/api/googleapi"
)

// Stats counts what one export did.
type Stats struct {
	Written   int
	Unchanged int
	Deleted   int
	Skipped   int
}

// Exporter pushes mirrored tasks into a calendar.
type Exporter struct {
	client *CalendarClient
	index  *index.EventIndex
	colors *colors.Cache
	tz     string
	logger *log.Logger
	now    func() time.Time
}

// NewExporter returns an exporter writing through client. tz places all-day tasks that carry
// no zone of their own.
func NewExporter(client *CalendarClient, idx *index.EventIndex, cache *colors.Cache, tz string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(os.Stderr, "[calendar] ", log.LstdFlags)
	}
	return &Exporter{client: client, index: idx, colors: cache, tz: tz, logger: logger, now: time.Now}
}

// Export writes an event for every dated task and deletes the events of indexed tasks that
// are no longer in tasks. projects maps project ids to names.
func (e *Exporter) Export(ctx context.Context, tasks []model.Entity, projects map[string]string) (Stats, error) {
	var stats Stats
	live := make(map[string]bool, len(tasks))
	var errs []error

	for _, task := range tasks {
		live[task.ID()] = true
		if !HasDates(task) {
			stats.Skipped++
			continue
		}
		event, err := ConvertTask(task, EventInput{
			ProjectName: projects[task.Project()],
			ColorID:     e.colors.ColorID(task.Project()),
			TimeZone:    e.tz,
			Now:         e.now(),
		})
		if err != nil {
			e.logger.Printf("Warning: skipping task %s: %v", task.ID(), err)
			stats.Skipped++
			continue
		}
		_, wrote, err := e.client.SyncEvent(ctx, task.ID(), event)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", task.ID(), err))
			continue
		}
		if wrote {
			stats.Written++
		} else {
			stats.Unchanged++
		}
	}

	for _, taskID := range e.index.TaskIDs() {
		if live[taskID] {
			continue
		}
		err := e.client.DeleteEvent(ctx, e.index.Get(taskID))
		var apiErr *googleapi.Error
		if err != nil && !(errors.As(err, &apiErr) && (apiErr.Code == http.StatusGone || apiErr.Code == http.StatusNotFound)) {
			errs = append(errs, fmt.Errorf("delete event of task %s: %w", taskID, err))
			continue
		}
		e.index.Remove(taskID)
		stats.Deleted++
	}

	for _, projectID := range e.colors.ProjectIDs() {
		if _, ok := projects[projectID]; !ok {
			e.colors.Forget(projectID)
		}
	}
	if err := e.index.Save(); err != nil {
		errs = append(errs, err)
	}
	if err := e.colors.Save(); err != nil {
		errs = append(errs, err)
	}
	e.logger.Printf("Calendar export: %d written, %d unchanged, %d deleted, %d skipped",
		stats.Written, stats.Unchanged, stats.Deleted, stats.Skipped)
	return stats, errors.Join(errs...)
}
