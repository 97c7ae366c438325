package guest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/storage"
)

func TestFirstListReturnsSeededDefaults(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0).Space("guest-1")
	s, _ := newStore(t, kv, nil)

	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cats, DefaultCategories) {
		t.Errorf("categories = %+v", cats)
	}
	groups, _ := s.ListCategoryGroups(ctx)
	if !reflect.DeepEqual(groups, DefaultGroups) {
		t.Errorf("groups = %+v", groups)
	}

	if _, err := kv.Get(ctx, KeyCategories); err != nil {
		t.Errorf("seed not persisted: %v", err)
	}

	// Every default category sits in a group of its own type.
	byID := map[string]core.CategoryGroup{}
	for _, g := range groups {
		byID[g.ID] = g
	}
	for _, c := range cats {
		g, ok := byID[c.GroupID]
		if !ok {
			t.Errorf("%s has unknown group %s", c.ID, c.GroupID)
			continue
		}
		if err := c.CheckGroup(g); err != nil {
			t.Errorf("%s: %v", c.ID, err)
		}
	}
}

func TestCorruptCategoriesReseed(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0).Space("guest-1")
	_ = kv.Set(ctx, KeyCategories, []byte(`[{`))
	s, _ := newStore(t, kv, nil)
	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) != len(DefaultCategories) {
		t.Errorf("expected defaults, got %d (%v)", len(cats), err)
	}
}

func TestCreateCategory(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)

	created, err := s.CreateCategory(ctx, core.Category{Name: " Coffee ", Icon: "cup", Type: core.Expense, GroupID: "group_wants"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Name != "Coffee" {
		t.Errorf("created = %+v", created)
	}
	cats, _ := s.ListCategories(ctx)
	if len(cats) != len(DefaultCategories)+1 || cats[len(cats)-1].ID != created.ID {
		t.Errorf("category not appended: %+v", cats)
	}

	cases := []struct {
		name string
		c    core.Category
		want error
	}{
		{"type mismatch", core.Category{Name: "Bonus", Type: core.Income, GroupID: "group_needs"}, core.ErrGroupTypeMismatch},
		{"unknown group", core.Category{Name: "Bonus", Type: core.Income, GroupID: "group_nope"}, ledger.ErrUnknownGroup},
		{"no name", core.Category{Type: core.Income, GroupID: "group_income"}, core.ErrEmptyName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.CreateCategory(ctx, tc.c); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateCategoryInSameMillisecondKeepsBoth(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, nil, nil)

	a, err := s.CreateCategory(ctx, core.Category{Name: "Pets", Type: core.Expense, GroupID: "group_needs"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateCategory(ctx, core.Category{Name: "Gifts", Type: core.Expense, GroupID: "group_wants"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "category_1761048000000" || b.ID != "category_1761048000001" {
		t.Fatalf("ids = %q, %q", a.ID, b.ID)
	}
	cats, _ := s.ListCategories(ctx)
	if len(cats) != len(DefaultCategories)+2 {
		t.Errorf("expected %d categories, got %d", len(DefaultCategories)+2, len(cats))
	}
}
