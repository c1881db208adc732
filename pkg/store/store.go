// Package store holds the in-memory mirror of the remote collections.
package store

import (
	"fmt"
	"sync"

	"github.com/harrisonrobin/tickmirror/pkg/model"
)

// Store mirrors the four remote collections. Collections are replaced wholesale, never
// edited in place, so a reader holding a slice keeps a consistent view.
type Store struct {
	mu      sync.RWMutex
	state   map[string][]model.Entity
	inboxID string
}

// New returns an empty mirror.
func New() *Store {
	s := &Store{state: make(map[string][]model.Entity, len(model.Collections))}
	for _, c := range model.Collections {
		s.state[c] = []model.Entity{}
	}
	return s
}

// Replace swaps in the collections of snap. Entities sharing an id keep the last occurrence.
func (s *Store) Replace(snap model.Snapshot) {
	next := map[string][]model.Entity{
		model.Projects:       dedupe(snap.Projects),
		model.ProjectFolders: dedupe(snap.ProjectFolders),
		model.Tags:           orEmpty(snap.Tags),
		model.Tasks:          dedupe(snap.Tasks),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	s.inboxID = snap.InboxID
}

// InboxID returns the inbox project id from the last refresh.
func (s *Store) InboxID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inboxID
}

// Collection returns the current contents of name.
func (s *Store) Collection(name string) ([]model.Entity, error) {
	if !model.IsCollection(name) {
		return nil, fmt.Errorf("collection %q: %w", name, model.ErrUnknownCollection)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Entity, len(s.state[name]))
	copy(out, s.state[name])
	return out, nil
}

// QueryByFields returns every entity whose fields equal all filters. An empty collection
// name scans all collections. A single match is returned unwrapped.
func (s *Store) QueryByFields(collection string, filters model.Fields) (model.Result, error) {
	if len(filters) == 0 {
		return model.Result{}, fmt.Errorf("query needs at least one field: %w", model.ErrInvalidArgument)
	}
	targets, err := targets(collection)
	if err != nil {
		return model.Result{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []model.Entity
	for _, c := range targets {
		for _, e := range s.state[c] {
			if e.Matches(filters) {
				found = append(found, e)
			}
		}
	}
	return model.Collapse(found), nil
}

// QueryByID returns the first entity with the given id, or a nil entity when none exists.
func (s *Store) QueryByID(id, collection string) (model.Entity, error) {
	return s.first(collection, "id", id)
}

// QueryByEtag returns the first entity with the given revision tag, or a nil entity.
func (s *Store) QueryByEtag(etag, collection string) (model.Entity, error) {
	return s.first(collection, "etag", etag)
}

func (s *Store) first(collection, field, value string) (model.Entity, error) {
	targets, err := targets(collection)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range targets {
		for _, e := range s.state[c] {
			if v, ok := e.Get(field); ok && v == value {
				return e, nil
			}
		}
	}
	return nil, nil
}

// Remove deletes and returns the first entity matching all filters.
func (s *Store) Remove(collection string, filters model.Fields) (model.Entity, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("remove needs at least one field: %w", model.ErrInvalidArgument)
	}
	targets, err := targets(collection)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range targets {
		for i, e := range s.state[c] {
			if !e.Matches(filters) {
				continue
			}
			cur := s.state[c]
			next := make([]model.Entity, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			next = append(next, cur[i+1:]...)
			s.state[c] = next
			return e, nil
		}
	}
	return nil, fmt.Errorf("remove %v from %s: %w", filters, describe(collection), model.ErrNotFound)
}

func targets(collection string) ([]string, error) {
	if collection == "" {
		return model.Collections, nil
	}
	if !model.IsCollection(collection) {
		return nil, fmt.Errorf("collection %q: %w", collection, model.ErrUnknownCollection)
	}
	return []string{collection}, nil
}

func describe(collection string) string {
	if collection == "" {
		return "all collections"
	}
	return collection
}

func orEmpty(es []model.Entity) []model.Entity {
	if es == nil {
		return []model.Entity{}
	}
	return es
}

func dedupe(es []model.Entity) []model.Entity {
	seen := make(map[string]int, len(es))
	out := make([]model.Entity, 0, len(es))
	for _, e := range es {
		id := e.ID()
		if id == "" {
			out = append(out, e)
			continue
		}
		if i, ok := seen[id]; ok {
			out[i] = e
			continue
		}
		seen[id] = len(out)
		out = append(out, e)
	}
	return out
}
