package ticktick

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/harrisonrobin/tickmirror/pkg/colors"
	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/reconcile"
)

const (
	batchTagPath  = "batch/tag"
	tagRenamePath = "tag/rename"
	tagMergePath  = "tag/merge"
	tagPath       = "tag"
)

// TagManager creates and changes tags. Tags are addressed by label; the service keys them
// by the lowercased label.
type TagManager struct {
	c *Client
}

func tagName(label string) string { return strings.ToLower(label) }

func payloadName(p model.TagPayload) string { return p.Name }

func entityName(e model.Entity) string { return e.Name() }

func (m *TagManager) find(label string) (model.Entity, error) {
	res, err := m.c.store.QueryByFields(model.Tags, model.Fields{"name": tagName(label)})
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("tag %q: %w", label, model.ErrNotFound)
	}
	return res.All()[0], nil
}

func (m *TagManager) exists(label string) bool {
	_, err := m.find(label)
	return err == nil
}

// Builder validates a new tag. color may be empty, a hex value or "random"; sort is a code
// from 0 to 3.
func (m *TagManager) Builder(label, color, parent string, sort int) (model.TagPayload, error) {
	if label == "" {
		return model.TagPayload{}, fmt.Errorf("tag label is required: %w", model.ErrInvalidArgument)
	}
	if m.exists(label) {
		return model.TagPayload{}, fmt.Errorf("tag %q: %w", label, model.ErrConflict)
	}
	hex, err := colors.Resolve(color)
	if err != nil {
		return model.TagPayload{}, err
	}
	sortType, ok := model.SortType(sort)
	if !ok {
		return model.TagPayload{}, fmt.Errorf("sort code %d: %w", sort, model.ErrInvalidArgument)
	}
	p := model.TagPayload{Label: label, Name: tagName(label), Color: hex, SortType: sortType}
	if parent != "" {
		pobj, err := m.find(parent)
		if err != nil {
			return model.TagPayload{}, err
		}
		p.Parent = pobj.Name()
	}
	return p, nil
}

// Create creates tags and returns them in the given order.
func (m *TagManager) Create(ctx context.Context, payloads ...model.TagPayload) (model.Result, error) {
	if len(payloads) == 0 {
		return model.Result{}, fmt.Errorf("no tags to create: %w", model.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		if seen[p.Name] {
			return model.Result{}, fmt.Errorf("tag %q appears twice: %w", p.Label, model.ErrConflict)
		}
		seen[p.Name] = true
	}

	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	resp, err := m.c.mutate(ctx, batchTagPath, map[string]any{"add": payloads})
	if err != nil {
		return model.Result{}, err
	}
	return reconcile.Batch(m.c.store, model.Tags, payloads, resp, payloadName)
}

// Update sends edited tags back and returns them in the given order.
func (m *TagManager) Update(ctx context.Context, tags ...model.Entity) (model.Result, error) {
	if len(tags) == 0 {
		return model.Result{}, fmt.Errorf("no tags to update: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.update(ctx, tags)
}

func (m *TagManager) update(ctx context.Context, tags []model.Entity) (model.Result, error) {
	resp, err := m.c.mutate(ctx, batchTagPath, map[string]any{"update": tags})
	if err != nil {
		return model.Result{}, err
	}
	return reconcile.Batch(m.c.store, model.Tags, tags, resp, entityName)
}

// Rename changes the label of a tag.
func (m *TagManager) Rename(ctx context.Context, oldLabel, newLabel string) (model.Entity, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	if _, err := m.find(oldLabel); err != nil {
		return nil, err
	}
	if m.exists(newLabel) {
		return nil, fmt.Errorf("tag %q: %w", newLabel, model.ErrConflict)
	}
	payload := map[string]string{"name": tagName(oldLabel), "newName": newLabel}
	if _, err := m.c.send(ctx, http.MethodPut, tagRenamePath, payload, nil); err != nil {
		return nil, err
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	renamed, err := m.find(newLabel)
	if err != nil {
		return nil, fmt.Errorf("renamed tag %q absent after sync: %w", newLabel, model.ErrReconciliationMismatch)
	}
	return renamed, nil
}

// Color sets the color of a tag. color is a hex value or "random".
func (m *TagManager) Color(ctx context.Context, label, color string) (model.Entity, error) {
	hex, err := colors.Resolve(color)
	if err != nil {
		return nil, err
	}
	if hex == "" {
		return nil, fmt.Errorf("a color is required: %w", model.ErrInvalidArgument)
	}
	return m.edit(ctx, label, func(obj model.Entity) { obj["color"] = hex })
}

// Sorting sets the sort type of a tag from a code between 0 and 3.
func (m *TagManager) Sorting(ctx context.Context, label string, sort int) (model.Entity, error) {
	sortType, ok := model.SortType(sort)
	if !ok {
		return nil, fmt.Errorf("sort code %d: %w", sort, model.ErrInvalidArgument)
	}
	return m.edit(ctx, label, func(obj model.Entity) { obj["sortType"] = sortType })
}

func (m *TagManager) edit(ctx context.Context, label string, change func(model.Entity)) (model.Entity, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	tag, err := m.find(label)
	if err != nil {
		return nil, err
	}
	obj := tag.Clone()
	change(obj)
	res, err := m.update(ctx, []model.Entity{obj})
	if err != nil {
		return nil, err
	}
	out, _ := res.One()
	return out, nil
}

// Nesting moves child under parent, or to the top level when parent is nil. The child is
// returned.
func (m *TagManager) Nesting(ctx context.Context, child string, parent *string) (model.Entity, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	tag, err := m.find(child)
	if err != nil {
		return nil, err
	}
	obj := tag.Clone()

	if parent == nil {
		if obj.String("parent") == "" {
			return tag, nil
		}
		batch := []model.Entity{obj}
		if old, err := m.find(obj.String("parent")); err == nil {
			batch = []model.Entity{old.Clone(), obj}
		}
		obj["parent"] = ""
		res, err := m.update(ctx, batch)
		if err != nil {
			return nil, err
		}
		all := res.All()
		return all[len(all)-1], nil
	}

	ptag, err := m.find(*parent)
	if err != nil {
		return nil, err
	}
	if ptag.Name() == tag.Name() {
		return nil, fmt.Errorf("tag %q cannot be its own parent: %w", child, model.ErrInvalidArgument)
	}
	if obj.String("parent") == ptag.Name() {
		return tag, nil
	}
	obj["parent"] = ptag.Name()
	pobj := ptag.Clone()
	res, err := m.update(ctx, []model.Entity{pobj, obj})
	if err != nil {
		return nil, err
	}
	all := res.All()
	return all[len(all)-1], nil
}

// Merge folds every tag in labels into kept and returns kept.
func (m *TagManager) Merge(ctx context.Context, labels []string, kept string) (model.Entity, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no tags to merge: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	target, err := m.find(kept)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if tagName(l) == target.Name() {
			return nil, fmt.Errorf("tag %q cannot be merged into itself: %w", l, model.ErrInvalidArgument)
		}
		if _, err := m.find(l); err != nil {
			return nil, err
		}
	}
	for _, l := range labels {
		payload := map[string]string{"name": tagName(l), "newName": target.Name()}
		if _, err := m.c.send(ctx, http.MethodPut, tagMergePath, payload, nil); err != nil {
			return nil, err
		}
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return nil, err
	}
	merged, err := m.find(kept)
	if err != nil {
		return nil, fmt.Errorf("merged tag %q absent after sync: %w", kept, model.ErrReconciliationMismatch)
	}
	return merged, nil
}

// Delete deletes tags and returns them as they were mirrored before the deletion.
func (m *TagManager) Delete(ctx context.Context, labels ...string) (model.Result, error) {
	if len(labels) == 0 {
		return model.Result{}, fmt.Errorf("no tags to delete: %w", model.ErrInvalidArgument)
	}
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	tags := make([]model.Entity, len(labels))
	for i, l := range labels {
		tag, err := m.find(l)
		if err != nil {
			return model.Result{}, err
		}
		tags[i] = tag
	}
	for _, tag := range tags {
		if _, err := m.c.send(ctx, http.MethodDelete, tagPath, nil, url.Values{"name": {tag.Name()}}); err != nil {
			return model.Result{}, err
		}
		key := model.Fields{"etag": tag.Etag()}
		if tag.Etag() == "" {
			key = model.Fields{"name": tag.Name()}
		}
		if _, err := m.c.store.Remove(model.Tags, key); err != nil {
			return model.Result{}, err
		}
	}
	if _, err := m.c.engine.Refresh(ctx); err != nil {
		return model.Result{}, err
	}
	return model.Collapse(tags), nil
}
