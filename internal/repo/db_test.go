package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
// The pool is pinned to a single connection so every query sees the same
// in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role domain.UserRole) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:    uuid.NewString(),
		Email: uuid.NewString() + "@example.com",
		Name:  "Test User",
		Role:  role,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedCategory(t *testing.T, db *gorm.DB, name, slug string) *domain.Category {
	t.Helper()
	c := &domain.Category{ID: uuid.NewString(), Name: name, Slug: slug}
	if err := CreateCategory(context.Background(), db, c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}
