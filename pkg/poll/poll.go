// Package poll refreshes the mirror on a fixed interval and hands each fresh view to its
// subscribers.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/todo"
)

// DefaultInterval is the time between two refreshes.
const DefaultInterval = time.Minute

// InboxName is the list name given to the inbox, which is not a project of its own.
const InboxName = "Inbox"

// ErrUpdateFailed wraps any failure of a refresh cycle.
var ErrUpdateFailed = errors.New("error updating data from TickTick")

// Refresher performs a full resync of the mirror.
type Refresher interface {
	RefreshShared(ctx context.Context) (*model.Snapshot, error)
}

// Data is what one cycle publishes.
type Data struct {
	Time     time.Time
	InboxID  string
	Projects []model.Entity
	Tasks    []model.Entity
	Lists    []todo.List
}

// Handler receives the data of every successful cycle.
type Handler func(ctx context.Context, d Data) error

// Poller runs refresh cycles one at a time.
type Poller struct {
	source   Refresher
	interval time.Duration
	loc      *time.Location
	logger   *log.Logger

	cycle    sync.Mutex
	mu       sync.Mutex
	handlers []Handler
	last     *Data
	failures int
}

// New returns a poller refreshing source every interval. Due dates of the published lists
// are days in loc.
func New(source Refresher, interval time.Duration, loc *time.Location, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[poll] ", log.LstdFlags)
	}
	return &Poller{source: source, interval: interval, loc: loc, logger: logger}
}

// Subscribe adds h to the handlers called after each successful cycle.
func (p *Poller) Subscribe(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Update runs one cycle. A failed refresh leaves the last published data in place and
// returns an error wrapping ErrUpdateFailed. Handler errors are logged only.
func (p *Poller) Update(ctx context.Context) (Data, error) {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	snap, err := p.source.RefreshShared(ctx)
	if err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
		return Data{}, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	projects := append([]model.Entity{{"id": snap.InboxID, "name": InboxName}}, snap.Projects...)
	lists, err := todo.Lists(projects, snap.Tasks, p.loc)
	if err != nil {
		p.logger.Printf("Warning: %v", err)
	}
	d := Data{
		Time:     time.Now(),
		InboxID:  snap.InboxID,
		Projects: snap.Projects,
		Tasks:    snap.Tasks,
		Lists:    lists,
	}

	p.mu.Lock()
	p.last = &d
	p.failures = 0
	handlers := append([]Handler(nil), p.handlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, d); err != nil {
			p.logger.Printf("Warning: subscriber failed: %v", err)
		}
	}
	return d, nil
}

// Run performs a cycle right away and then one per interval until ctx is done. Failed
// cycles are logged and retried at the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Update(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Printf("Warning: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Last returns the data of the most recent successful cycle.
func (p *Poller) Last() (Data, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Data{}, false
	}
	return *p.last, true
}

// Failures returns the number of consecutive failed cycles.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
