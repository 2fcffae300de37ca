// Package repo implements the data persistence layer for directory
// entities, backed by GORM. This file provides repository functions for the
// Business model, including the filter translation used by the listing
// query path.
//
// Functions:
//
//   - FindBusinessByID(ctx, db, id) -> *domain.Business, error
//     Fetches a single business with its category, or ErrNotFound.
//
//   - FindBusinessBySlug(ctx, db, slug) -> *domain.Business, error
//     Slug variant of the above, used by public detail pages.
//
//   - ListBusinesses(ctx, db, f) -> []domain.Business, error
//     Returns one page of businesses matching the filter.
//
//   - CountBusinesses(ctx, db, f) -> int64, error
//     Returns the total number of rows matching the same filter.
//
//   - CreateBusiness / UpdateBusiness / DeleteBusiness
//     Write path; DeleteBusiness is a soft delete via gorm.DeletedAt.
//
//   - IncrementBusinessViews(ctx, db, id) -> error
//     Atomic SQL-side counter bump (view analytics side channel).
//
// The geo bounding box in BusinessFilter is a cheap SQL pre-filter only;
// exact haversine ranking happens in the service layer.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/geo"
)

// BusinessFilter is the repo-level translation of a listing query. Empty
// string fields and nil pointers mean "no constraint".
type BusinessFilter struct {
	Search   string // substring match on name/description, case-insensitive
	Category string // category id or slug
	City     string
	Region   string
	Status   domain.BusinessStatus
	Plan     domain.Plan
	Featured *bool
	Box      *geo.Box // bounding-box pre-filter for geo queries

	SortField string // name|created_at|view_count|featured; default created_at
	SortDesc  bool

	Offset int
	Limit  int
}

// scopeBusinesses composes the shared WHERE clause for listing and count so
// the two queries can never drift apart.
func scopeBusinesses(db *gorm.DB, f BusinessFilter) *gorm.DB {
	q := db.Model(&domain.Business{})

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(businesses.name) LIKE ? OR LOWER(businesses.description) LIKE ?", like, like)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		q = q.Where("businesses.category_id = ? OR businesses.category_id IN (?)",
			c, db.Session(&gorm.Session{NewDB: true}).Model(&domain.Category{}).Select("id").Where("slug = ?", c))
	}
	if f.City != "" {
		q = q.Where("LOWER(businesses.city) LIKE ?", "%"+strings.ToLower(f.City)+"%")
	}
	if f.Region != "" {
		q = q.Where("LOWER(businesses.region) LIKE ?", "%"+strings.ToLower(f.Region)+"%")
	}
	if f.Status != "" {
		q = q.Where("businesses.status = ?", f.Status)
	}
	if f.Plan != "" {
		q = q.Where("businesses.plan = ?", f.Plan)
	}
	if f.Featured != nil {
		q = q.Where("businesses.featured = ?", *f.Featured)
	}
	if f.Box != nil {
		q = q.Where("businesses.latitude BETWEEN ? AND ?", f.Box.MinLat, f.Box.MaxLat).
			Where("businesses.longitude BETWEEN ? AND ?", f.Box.MinLon, f.Box.MaxLon)
	}
	return q
}

// orderClause maps the filter's sort field to a SQL ORDER BY. Distance
// ordering is not expressible here; the service sorts in memory after
// ranking, so the repo falls back to creation order for that case.
func orderClause(f BusinessFilter) string {
	col := "created_at"
	switch f.SortField {
	case "name":
		col = "name"
	case "view_count":
		col = "view_count"
	case "featured":
		col = "featured"
	case "created_at", "":
	}
	dir := "asc"
	if f.SortDesc {
		dir = "desc"
	}
	return col + " " + dir
}

// ListBusinesses returns one page of businesses matching the filter,
// categories preloaded.
func ListBusinesses(ctx context.Context, db *gorm.DB, f BusinessFilter) ([]domain.Business, error) {
	var out []domain.Business
	err := scopeBusinesses(db.WithContext(ctx), f).
		Preload("Category").
		Order(orderClause(f)).
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&out).Error
	return out, err
}

// CountBusinesses returns the total number of rows matching the filter.
func CountBusinesses(ctx context.Context, db *gorm.DB, f BusinessFilter) (int64, error) {
	var total int64
	err := scopeBusinesses(db.WithContext(ctx), f).Count(&total).Error
	return total, err
}

// FindBusinessByID fetches a single business with its category, or
// ErrNotFound.
func FindBusinessByID(ctx context.Context, db *gorm.DB, id string) (*domain.Business, error) {
	var b domain.Business
	err := db.WithContext(ctx).
		Preload("Category").
		Where("id = ?", id).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindBusinessBySlug fetches a single business by slug, or ErrNotFound.
func FindBusinessBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Business, error) {
	var b domain.Business
	err := db.WithContext(ctx).
		Preload("Category").
		Where("slug = ?", slug).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBusiness inserts a new listing row.
func CreateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error {
	b.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(b).Error
}

// UpdateBusiness persists changed columns of an already-loaded business.
func UpdateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error {
	return db.WithContext(ctx).Save(b).Error
}

// DeleteBusiness soft-deletes the row; ErrNotFound when nothing matched.
func DeleteBusiness(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Business{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementBusinessViews bumps the persisted view counter. Expressed in SQL
// so concurrent detail reads both land.
func IncrementBusinessViews(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Business{}).
		Where("id = ?", id).
		Update("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// SlugExists reports whether a business slug is already taken by a row
// other than excludeID. Used by the unique-slug generator.
func SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Business{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
