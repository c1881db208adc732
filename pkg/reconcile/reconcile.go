// Package reconcile maps the service's unordered batch acknowledgements back onto the
// caller's ordered input.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/store"
	"github.com/harrisonrobin/tickmirror/pkg/transport"
)

// Response is the acknowledgement of a batch mutation.
type Response struct {
	ID2Etag  map[string]string `json:"id2etag"`
	ID2Error map[string]any    `json:"id2error"`
}

// Decode reads a Response from a transport body.
func Decode(body *transport.Body) (Response, error) {
	var r Response
	if err := body.Decode(&r); err != nil {
		return Response{}, err
	}
	if r.ID2Etag == nil {
		r.ID2Etag = map[string]string{}
	}
	return r, nil
}

// ParseID returns the single accepted key of a singleton response.
func ParseID(r Response) (string, error) {
	keys := sortedKeys(r.ID2Etag)
	if len(keys) == 0 {
		return "", fmt.Errorf("response accepted nothing%s: %w", describeErrors(r), model.ErrReconciliationMismatch)
	}
	return keys[0], nil
}

// ParseEtag returns the revision tag of a singleton response.
func ParseEtag(r Response) (string, error) {
	id, err := ParseID(r)
	if err != nil {
		return "", err
	}
	return r.ID2Etag[id], nil
}

// Strategy resolves a response into the materialized entities it acknowledged.
type Strategy interface {
	Resolve(r Response) (model.Result, error)
}

// ByRevision resolves a batch by looking every acknowledged revision tag up in the freshly
// synced mirror and placing it at the index of the candidate with the same natural key.
type ByRevision[T any] struct {
	Store      *store.Store
	Collection string
	Candidates []T
	// Key returns the natural key of a candidate.
	Key func(T) string
	// ResolvedKey, when set, derives the natural key from the resolved entity instead of
	// using the response key. Needed when the service keys a collection differently from
	// the caller.
	ResolvedKey func(model.Entity) string
}

// Resolve implements Strategy.
func (b ByRevision[T]) Resolve(r Response) (model.Result, error) {
	keys := make([]string, len(b.Candidates))
	for i, c := range b.Candidates {
		keys[i] = b.Key(c)
	}

	result := make([]model.Entity, len(b.Candidates))
	for key, etag := range r.ID2Etag {
		found, err := b.Store.QueryByEtag(etag, b.Collection)
		if err != nil {
			return model.Result{}, err
		}
		if found.Empty() {
			return model.Result{}, fmt.Errorf("%s %q acknowledged with etag %s but absent after sync: %w", b.Collection, key, etag, model.ErrReconciliationMismatch)
		}

		natural := key
		if b.ResolvedKey != nil {
			natural = b.ResolvedKey(found)
		}
		idx := indexOf(keys, natural)
		if idx < 0 {
			return model.Result{}, fmt.Errorf("%s %q was not part of the request: %w", b.Collection, natural, model.ErrReconciliationMismatch)
		}
		result[idx] = found
	}

	for i, e := range result {
		if e.Empty() {
			return model.Result{}, fmt.Errorf("%s %q was not acknowledged%s: %w", b.Collection, keys[i], describeErrors(r), model.ErrReconciliationMismatch)
		}
	}
	return model.Collapse(result), nil
}

// ByID resolves a singleton response whose only key is the accepted entity id.
type ByID struct {
	Store      *store.Store
	Collection string
}

// Resolve implements Strategy.
func (s ByID) Resolve(r Response) (model.Result, error) {
	id, err := ParseID(r)
	if err != nil {
		return model.Result{}, err
	}
	found, err := s.Store.QueryByID(id, s.Collection)
	if err != nil {
		return model.Result{}, err
	}
	if found.Empty() {
		return model.Result{}, fmt.Errorf("%s %s acknowledged but absent after sync: %w", s.Collection, id, model.ErrReconciliationMismatch)
	}
	return model.One(found), nil
}

// Batch resolves r against candidates keyed by key.
func Batch[T any](s *store.Store, collection string, candidates []T, r Response, key func(T) string) (model.Result, error) {
	return ByRevision[T]{Store: s, Collection: collection, Candidates: candidates, Key: key}.Resolve(r)
}

// Singleton resolves a single-key response through the accepted id.
func Singleton(s *store.Store, collection string, r Response) (model.Entity, error) {
	res, err := ByID{Store: s, Collection: collection}.Resolve(r)
	if err != nil {
		return nil, err
	}
	e, _ := res.One()
	return e, nil
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describeErrors(r Response) string {
	if len(r.ID2Error) == 0 {
		return ""
	}
	return fmt.Sprintf(" (id2error: %v)", r.ID2Error)
}
