// Package services – CategoryService
//
// Category CRUD with slug management. Categories are admin-managed and
// low-churn; the listing endpoint leans on HTTP conditional requests (see
// the handler layer) rather than the query cache.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// CategoryRepo defines the repository contract required by CategoryService.
type CategoryRepo interface {
	CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error
	FindCategoryByID(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error)
	FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error)
	ListCategories(ctx context.Context, db *gorm.DB, search string, offset, limit int, sortDesc bool) ([]domain.Category, int64, error)
	CountBusinessesInCategory(ctx context.Context, db *gorm.DB, categoryID string) (int64, error)
	UpdateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error
	DeleteCategory(ctx context.Context, db *gorm.DB, id string) error
	CategoriesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// CategoryInput carries the writable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
	Icon        string
	Color       string
}

// CategoryService manages the browsable category tree.
type CategoryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the category repository.
	Repo CategoryRepo
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(db *gorm.DB, r CategoryRepo) *CategoryService {
	return &CategoryService{DB: db, Repo: r}
}

// Create inserts a new category. The slug is derived from the name and must
// be unused; a collision returns ErrSlugTaken rather than suffixing, since
// category names are curated and duplicates usually mean operator error.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	slug := Slugify(name)
	if slug == "" {
		return nil, ErrSlugTaken
	}
	if _, err := s.Repo.FindCategoryBySlug(ctx, s.DB, slug); err == nil {
		return nil, ErrSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := &domain.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		Icon:        in.Icon,
		Color:       in.Color,
	}
	if err := s.Repo.CreateCategory(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get fetches a category by id or slug.
func (s *CategoryService) Get(ctx context.Context, ref string) (*domain.Category, error) {
	c, err := s.Repo.FindCategoryByID(ctx, s.DB, ref)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c, err = s.Repo.FindCategoryBySlug(ctx, s.DB, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns a page of categories with the total count.
func (s *CategoryService) List(ctx context.Context, search string, page, limit int, sortDesc bool) ([]domain.Category, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	return s.Repo.ListCategories(ctx, s.DB, search, (page-1)*limit, limit, sortDesc)
}

// Update applies the provided fields. A name change re-derives the slug and
// enforces uniqueness.
func (s *CategoryService) Update(ctx context.Context, id string, in CategoryInput) (*domain.Category, error) {
	c, err := s.Repo.FindCategoryByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != c.Name {
		slug := Slugify(name)
		if other, err := s.Repo.FindCategoryBySlug(ctx, s.DB, slug); err == nil && other.ID != c.ID {
			return nil, ErrSlugTaken
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		c.Name = name
		c.Slug = slug
	}
	if in.Description != "" {
		c.Description = in.Description
	}
	if in.Icon != "" {
		c.Icon = in.Icon
	}
	if in.Color != "" {
		c.Color = in.Color
	}

	if err := s.Repo.UpdateCategory(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category, refusing while businesses still reference it.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	n, err := s.Repo.CountBusinessesInCategory(ctx, s.DB, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryInUse
	}
	err = s.Repo.DeleteCategory(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCategoryNotFound
	}
	return err
}

// Stats exposes aggregate table metadata for conditional HTTP caching.
func (s *CategoryService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.CategoriesStats(ctx, s.DB)
}
