package ticktick

import (
	"context"
	"errors"
	"testing"

	"github.com/harrisonrobin/tickmirror/pkg/colors"
	"github.com/harrisonrobin/tickmirror/pkg/model"
)

func TestTagBuilder(t *testing.T) {
	c, _ := newTestClient(t)

	tests := []struct {
		name   string
		label  string
		color  string
		parent string
		sort   int
		want   error
	}{
		{"existing name", "ERRAND", "", "", 0, model.ErrConflict},
		{"bad color", "Home", "blue", "", 0, model.ErrInvalidArgument},
		{"bad sort", "Home", "", "", 7, model.ErrInvalidArgument},
		{"missing parent", "Home", "", "nope", 0, model.ErrNotFound},
		{"empty label", "", "", "", 0, model.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Tags.Builder(tt.label, tt.color, tt.parent, tt.sort); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	p, err := c.Tags.Builder("Home", colors.Random, "Errand", 2)
	if err != nil {
		t.Fatalf("Builder failed: %v", err)
	}
	if p.Name != "home" || p.Label != "Home" || p.Parent != "errand" || p.SortType != model.SortTitle || !colors.Valid(p.Color) {
		t.Errorf("Unexpected payload %+v", p)
	}
}

func TestTagCreatePreservesOrder(t *testing.T) {
	c, _ := newTestClient(t)
	b, _ := c.Tags.Builder("Shop", "", "", 0)
	a, _ := c.Tags.Builder("Alpha", "#abc", "", 1)

	res, err := c.Tags.Create(context.Background(), b, a)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got := res.Many()
	if len(got) != 2 || got[0].Name() != "shop" || got[1].Name() != "alpha" {
		t.Errorf("Expected [shop alpha], got %v", got)
	}

	single, _ := c.Tags.Builder("Solo", "", "", 0)
	res, err = c.Tags.Create(context.Background(), single)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e, ok := res.One(); !ok || e.Name() != "solo" {
		t.Errorf("Expected a single unwrapped tag, got %+v", res)
	}

	if _, err := c.Tags.Create(context.Background(), single, single); !errors.Is(err, model.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate names, got %v", err)
	}
}

func TestTagRename(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	renamed, err := c.Tags.Rename(ctx, "Errand", "Chores")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Name() != "chores" || renamed.String("label") != "Chores" {
		t.Errorf("Unexpected renamed tag %v", renamed)
	}
	if _, err := c.Tags.Rename(ctx, "Errand", "Other"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	p, _ := c.Tags.Builder("Work", "", "", 0)
	c.Tags.Create(ctx, p)
	if _, err := c.Tags.Rename(ctx, "Work", "chores"); !errors.Is(err, model.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestTagColorAndSorting(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	tag, err := c.Tags.Color(ctx, "Errand", "#123456")
	if err != nil {
		t.Fatalf("Color failed: %v", err)
	}
	if tag.String("color") != "#123456" {
		t.Errorf("Expected new color, got %v", tag)
	}
	if _, err := c.Tags.Color(ctx, "Errand", ""); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for an empty color, got %v", err)
	}

	tag, err = c.Tags.Sorting(ctx, "Errand", 3)
	if err != nil {
		t.Fatalf("Sorting failed: %v", err)
	}
	if tag.String("sortType") != model.SortPriority || tag.String("color") != "#123456" {
		t.Errorf("Expected priority sort with kept color, got %v", tag)
	}
	if _, err := c.Tags.Sorting(ctx, "Errand", -1); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestTagNesting(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()
	p, _ := c.Tags.Builder("Work", "", "", 0)
	if _, err := c.Tags.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	parent := "Errand"
	child, err := c.Tags.Nesting(ctx, "Work", &parent)
	if err != nil {
		t.Fatalf("Nesting failed: %v", err)
	}
	if child.Name() != "work" || child.String("parent") != "errand" {
		t.Errorf("Expected work under errand, got %v", child)
	}

	missing := "nope"
	if _, err := c.Tags.Nesting(ctx, "Work", &missing); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	child, err = c.Tags.Nesting(ctx, "Work", nil)
	if err != nil {
		t.Fatalf("Unnesting failed: %v", err)
	}
	if child.String("parent") != "" {
		t.Errorf("Expected work at top level, got %v", child)
	}
	var sent struct {
		Update []record `json:"update"`
	}
	f.body("/api/v2/batch/tag", &sent)
	if len(sent.Update) != 2 || sent.Update[0]["name"] != "errand" || sent.Update[1]["name"] != "work" {
		t.Errorf("Expected the old parent sent before the child, got %v", sent.Update)
	}
}

func TestTagMergeAndDelete(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()
	a, _ := c.Tags.Builder("Shop", "", "", 0)
	b, _ := c.Tags.Builder("Market", "", "", 0)
	if _, err := c.Tags.Create(ctx, a, b); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := c.Tags.Merge(ctx, []string{"Errand"}, "errand"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument merging into itself, got %v", err)
	}
	kept, err := c.Tags.Merge(ctx, []string{"Market"}, "Shop")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if kept.Name() != "shop" {
		t.Errorf("Expected shop back, got %v", kept)
	}
	if res, _ := c.Store().QueryByFields(model.Tags, model.Fields{"name": "market"}); !res.Empty() {
		t.Errorf("Expected market to be merged away")
	}

	res, err := c.Tags.Delete(ctx, "Shop", "Errand")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.Len() != 2 || res.All()[0].Name() != "shop" {
		t.Errorf("Expected deleted tags back, got %+v", res)
	}
	if f.called("DELETE /api/v2/tag") != 2 {
		t.Errorf("Expected one DELETE per tag")
	}
	tags, _ := c.Store().Collection(model.Tags)
	if len(tags) != 0 {
		t.Errorf("Expected no tags left, got %v", tags)
	}
	if _, err := c.Tags.Delete(ctx, "Shop"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
