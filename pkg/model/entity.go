package model

import (
	"encoding/json"
	"reflect"
)

// Collection names of the mirrored remote state.
const (
	Projects       = "projects"
	ProjectFolders = "project_folders"
	Tags           = "tags"
	Tasks          = "tasks"
)

// Collections lists every collection in the order collection-less queries scan them.
var Collections = []string{Projects, ProjectFolders, Tags, Tasks}

// InboxAlias is the project id the open API uses for the user's inbox.
const InboxAlias = "inbox"

// IsCollection reports whether name is one of the four mirrored collections.
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Fields is a set of field filters or a partial record.
type Fields map[string]any

// Entity is a remote record as decoded from the service's JSON.
type Entity map[string]any

// Get returns the value stored under field.
func (e Entity) Get(field string) (any, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e[field]
	return v, ok
}

// String returns field as a string, or "" when it is absent or not a string.
func (e Entity) String(field string) string {
	v, ok := e.Get(field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e Entity) ID() string      { return e.String("id") }
func (e Entity) Etag() string    { return e.String("etag") }
func (e Entity) Name() string    { return e.String("name") }
func (e Entity) Title() string   { return e.String("title") }
func (e Entity) Project() string { return e.String("projectId") }

// Empty reports whether e is the empty sentinel returned for a missing lookup.
func (e Entity) Empty() bool { return len(e) == 0 }

// Matches reports whether every filter key is present on e with an equal value.
func (e Entity) Matches(filters Fields) bool {
	for field, want := range filters {
		got, ok := e.Get(field)
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can edit a mirrored record before sending it.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		out := make(Entity, len(e))
		for k, v := range e {
			out[k] = v
		}
		return out
	}
	var out Entity
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Equal compares two decoded JSON values. Numbers compare by value regardless of Go type.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if _, ok := toFloat(b); ok {
		return false
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Snapshot is the full remote state returned by one resync.
type Snapshot struct {
	InboxID        string
	Projects       []Entity
	ProjectFolders []Entity
	Tags           []Entity
	Tasks          []Entity
}

// Settings holds the per-session values loaded once at login.
type Settings struct {
	TimeZone  string `json:"timeZone"`
	ProfileID string `json:"id"`
}
