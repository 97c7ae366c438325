package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"coinwise/internal/cache"
	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

// Taxonomy is the category picker's data.
type Taxonomy struct {
	Categories []core.Category      `json:"categories"`
	Groups     []core.CategoryGroup `json:"groups"`
}

// CategoryService reads categories and groups through a mode-scoped cache.
type CategoryService struct {
	cache  cache.Cache[Taxonomy]
	logger *log.Logger
}

func NewCategoryService(c cache.Cache[Taxonomy], logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryService{cache: c, logger: logger.WithComponent(log.ComponentLedger)}
}

// Taxonomy loads categories and groups concurrently.
func (s *CategoryService) Taxonomy(ctx context.Context, b ledger.Backend) (Taxonomy, error) {
	key := cache.Key(string(b.Mode()), b.Identity(), "taxonomy")
	if s.cache != nil {
		if t, ok := s.cache.Get(key); ok {
			return t, nil
		}
	}

	var t Taxonomy
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t.Categories, err = b.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		t.Groups, err = b.ListCategoryGroups(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Taxonomy{}, err
	}

	if s.cache != nil {
		s.cache.Set(key, t)
	}
	return t, nil
}

func (s *CategoryService) Categories(ctx context.Context, b ledger.Backend) ([]core.Category, error) {
	t, err := s.Taxonomy(ctx, b)
	return t.Categories, err
}

func (s *CategoryService) Groups(ctx context.Context, b ledger.Backend) ([]core.CategoryGroup, error) {
	t, err := s.Taxonomy(ctx, b)
	return t.Groups, err
}

// Create validates c and, when its group is listed, checks that the category
// type matches the group type before the backend sees it.
func (s *CategoryService) Create(ctx context.Context, b ledger.Backend, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	groups, err := s.Groups(ctx, b)
	if err != nil {
		return core.Category{}, err
	}
	for _, g := range groups {
		if g.ID == c.GroupID {
			if err := c.CheckGroup(g); err != nil {
				return core.Category{}, err
			}
			break
		}
	}

	created, err := b.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	if s.cache != nil {
		s.cache.DeletePrefix(cache.ScopePrefix(string(b.Mode()), b.Identity()))
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldMode, b.Mode(),
		log.FieldCategory, created.Name,
		log.FieldOperation, log.OpCreate)
	return created, nil
}
