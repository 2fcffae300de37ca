// Package repo implements the data persistence layer for directory
// entities, backed by GORM. This file provides repository functions for the
// Category model.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// CreateCategory inserts a new category row.
func CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	c.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(c).Error
}

// FindCategoryByID fetches a category by primary key, or ErrNotFound.
func FindCategoryByID(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCategoryBySlug fetches a category by slug, or ErrNotFound.
func FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCategoryByNameOrSlug is the lenient lookup used by ingestion: a
// case-insensitive name match or an exact slug match. ErrNotFound when
// neither hits.
func FindCategoryByNameOrSlug(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).
		Where("LOWER(name) = ? OR slug = ?", strings.ToLower(name), slug).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns a page of categories filtered by an optional
// search term, with the total count for pagination metadata.
func ListCategories(ctx context.Context, db *gorm.DB, search string, offset, limit int, sortDesc bool) ([]domain.Category, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Category{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "name asc"
	if sortDesc {
		order = "name desc"
	}
	var out []domain.Category
	err := q.Order(order).Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// CountBusinessesInCategory returns how many listings reference the
// category. Deletion is refused while this is non-zero.
func CountBusinessesInCategory(ctx context.Context, db *gorm.DB, categoryID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Business{}).
		Where("category_id = ?", categoryID).
		Count(&n).Error
	return n, err
}

// UpdateCategory persists changed columns of an already-loaded category.
func UpdateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return db.WithContext(ctx).Save(c).Error
}

// DeleteCategory soft-deletes the row; ErrNotFound when nothing matched.
func DeleteCategory(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CategoriesStats returns aggregate metadata for the categories table: the
// total number of rows and the greatest UpdatedAt among them. The HTTP
// layer derives weak ETags from this for conditional category listings.
func CategoriesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Category{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	err = q.Order("updated_at desc").Select("updated_at").Limit(1).Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	ts := row.UpdatedAt
	return count, &ts, nil
}
