package guest

import (
	"context"
	"strconv"
	"strings"

	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// DefaultGroups and DefaultCategories seed a guest keyspace on first read.
var (
	DefaultGroups = []core.CategoryGroup{
		{ID: "group_needs", Name: "Needs", Type: core.Expense},
		{ID: "group_wants", Name: "Wants", Type: core.Expense},
		{ID: "group_income", Name: "Income", Type: core.Income},
	}

	DefaultCategories = []core.Category{
		{ID: "category_food", Name: "Food", Icon: "utensils", Type: core.Expense, GroupID: "group_needs"},
		{ID: "category_transport", Name: "Transport", Icon: "car", Type: core.Expense, GroupID: "group_needs"},
		{ID: "category_bills", Name: "Bills", Icon: "receipt", Type: core.Expense, GroupID: "group_needs"},
		{ID: "category_shopping", Name: "Shopping", Icon: "shopping-bag", Type: core.Expense, GroupID: "group_wants"},
		{ID: "category_entertainment", Name: "Entertainment", Icon: "film", Type: core.Expense, GroupID: "group_wants"},
		{ID: "category_salary", Name: "Salary", Icon: "briefcase", Type: core.Income, GroupID: "group_income"},
		{ID: "category_freelance", Name: "Freelance", Icon: "laptop", Type: core.Income, GroupID: "group_income"},
	}
)

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories(ctx), nil
}

func (s *Store) ListCategoryGroups(ctx context.Context) ([]core.CategoryGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups(ctx), nil
}

// CreateCategory files c under an existing group of the same type.
func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var group *core.CategoryGroup
	for _, g := range s.groups(ctx) {
		if g.ID == c.GroupID {
			group = &g
			break
		}
	}
	if group == nil {
		return core.Category{}, ledger.ErrUnknownGroup
	}
	if err := c.CheckGroup(*group); err != nil {
		return core.Category{}, err
	}

	cats := s.categories(ctx)
	if c.ID == "" {
		c.ID = nextCategoryID(cats, s.now().UnixMilli())
	}
	cats = append(cats, c)
	s.write(ctx, KeyCategories, cats)
	return c, nil
}

// categories reads the stored list, seeding the defaults when none is stored.
// Callers hold s.mu.
func (s *Store) categories(ctx context.Context) []core.Category {
	var cats []core.Category
	if s.read(ctx, KeyCategories, &cats) {
		return cats
	}
	cats = append([]core.Category(nil), DefaultCategories...)
	s.logger.DebugContext(ctx, "Seeding default categories", log.FieldOperation, log.OpSeed)
	s.write(ctx, KeyCategories, cats)
	return cats
}

func (s *Store) groups(ctx context.Context) []core.CategoryGroup {
	var groups []core.CategoryGroup
	if s.read(ctx, KeyCategoryGroups, &groups) {
		return groups
	}
	groups = append([]core.CategoryGroup(nil), DefaultGroups...)
	s.logger.DebugContext(ctx, "Seeding default category groups", log.FieldOperation, log.OpSeed)
	s.write(ctx, KeyCategoryGroups, groups)
	return groups
}

// nextCategoryID returns category_+ms, stepping past ids already in cats.
func nextCategoryID(cats []core.Category, ms int64) string {
	taken := make(map[string]bool, len(cats))
	for _, c := range cats {
		taken[c.ID] = true
	}
	for {
		id := "category_" + strconv.FormatInt(ms, 10)
		if !taken[id] {
			return id
		}
		ms++
	}
}
