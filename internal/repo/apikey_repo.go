// Package repo implements the data persistence layer for directory
// entities, backed by GORM. This file provides repository functions for the
// APIKey registry.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a key is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Lookup is always by secret hash, never by plaintext: the registry stores
// only SHA-256 digests, and a digest that matches no row is simply
// not-found (fail closed).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAPIKey inserts a new registry row. The caller supplies the hash;
// plaintext secrets never reach this layer.
func CreateAPIKey(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	key.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(key).Error
}

// FindAPIKeyByHash fetches an active-or-inactive key by its secret hash,
// preloading the owning user. Missing rows return ErrNotFound. Active/expiry
// policy is applied by the service layer so that "not found", "revoked" and
// "expired" stay indistinguishable to callers.
func FindAPIKeyByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIKey, error) {
	var k domain.APIKey
	err := db.WithContext(ctx).
		Preload("User").
		Where("key_hash = ?", hash).
		First(&k).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAPIKeys returns all keys owned by userID, newest first. Hashes are
// carried in the model but excluded from JSON serialization.
func ListAPIKeys(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIKey, error) {
	var out []domain.APIKey
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// TouchAPIKeyUsage bumps the cumulative usage counter and stamps the last
// use. The increment is expressed in SQL so concurrent authentications both
// land (no read-modify-write in process).
func TouchAPIKeyUsage(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.APIKey{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": at,
		}).Error
}

// SetAPIKeyActive flips the active flag on a key owned by userID. Revocation
// is soft: the row stays for audit and the hash stays reserved. If no row
// matches (wrong owner or unknown id), it returns ErrNotFound.
func SetAPIKeyActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.APIKey{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
