// Package colors validates and generates hex colors and assigns calendar event colors to
// projects.
package colors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// CacheFile is the file name of the persisted project color assignments.
const CacheFile = "project_colors.json"

// NoProjectColor is the calendar color used for tasks outside any project.
const NoProjectColor = "8"

// Calendar event colors 1..11 are handed out to projects.
const paletteSize = 11

// Assignment is the calendar color held by one project.
type Assignment struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Cache assigns each project one of the calendar event colors, recycling the least recently
// used color once the palette is exhausted.
type Cache struct {
	path     string
	mu       sync.Mutex
	projects map[string]*Assignment
	dirty    bool
	now      func() time.Time
}

// NewCache loads the assignments stored at path, if any.
func NewCache(path string) (*Cache, error) {
	c := &Cache{path: path, projects: make(map[string]*Assignment), now: time.Now}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read color cache %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &c.projects); err != nil {
		return nil, fmt.Errorf("failed to decode color cache %s: %w", path, err)
	}
	return c, nil
}

// ColorID returns the calendar color of projectID, assigning one on first use.
func (c *Cache) ColorID(projectID string) string {
	if projectID == "" {
		return NoProjectColor
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty = true
	if a, ok := c.projects[projectID]; ok {
		a.LastUsed = c.now()
		return a.ColorID
	}
	return c.assign(projectID)
}

func (c *Cache) assign(projectID string) string {
	used := make(map[string]bool, len(c.projects))
	for _, a := range c.projects {
		used[a.ColorID] = true
	}
	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.projects[projectID] = &Assignment{ColorID: id, LastUsed: c.now()}
			return id
		}
	}

	var oldest string
	for p, a := range c.projects {
		if oldest == "" || a.LastUsed.Before(c.projects[oldest].LastUsed) {
			oldest = p
		}
	}
	recycled := c.projects[oldest].ColorID
	delete(c.projects, oldest)
	log.Printf("Recycled calendar color %s from project %s", recycled, oldest)
	c.projects[projectID] = &Assignment{ColorID: recycled, LastUsed: c.now()}
	return recycled
}

// Forget drops the assignment of a project that no longer exists.
func (c *Cache) Forget(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.projects[projectID]; ok {
		delete(c.projects, projectID)
		c.dirty = true
	}
}

// ProjectIDs returns the projects holding a color, in sorted order.
func (c *Cache) ProjectIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.projects))
	for id := range c.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes the assignments if they changed since the last save.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create color cache directory: %w", err)
	}
	b, err := json.MarshalIndent(c.projects, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("failed to write color cache: %w", err)
	}
	c.dirty = false
	return nil
}
