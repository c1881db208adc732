// Package index persists which calendar event mirrors which task.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// EventsFile is the file name of the index inside the config directory.
const EventsFile = "events.json"

// EventIndex maps task ids to calendar event ids.
type EventIndex struct {
	Path     string
	mappings map[string]string
	mu       sync.RWMutex
	dirty    bool
}

// Open loads the index stored at path, if any.
func Open(path string) (*EventIndex, error) {
	idx := &EventIndex{Path: path, mappings: make(map[string]string)}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &idx.mappings); err != nil {
		return nil, fmt.Errorf("failed to decode event index %s: %w", path, err)
	}
	return idx, nil
}

// Save writes the index if it changed.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(idx.mappings, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(idx.Path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("failed to write event index: %w", err)
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.mappings[taskID] != eventID {
		idx.mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.mappings[taskID]; exists {
		delete(idx.mappings, taskID)
		idx.dirty = true
	}
}

// TaskIDs returns the indexed task ids in sorted order.
func (idx *EventIndex) TaskIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.mappings))
	for id := range idx.mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
