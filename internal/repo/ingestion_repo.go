// Package repo implements the data persistence layer for directory
// entities, backed by GORM. This file provides repository functions for
// IngestionLog rows, which trace external feed imports end to end.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// CreateIngestionLog opens a log row in PROCESSING state and returns it.
func CreateIngestionLog(ctx context.Context, db *gorm.DB, source, rawData string) (*domain.IngestionLog, error) {
	l := &domain.IngestionLog{
		ID:        uuid.NewString(),
		Source:    source,
		RawData:   rawData,
		Status:    domain.IngestionProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// CloseIngestionLog transitions the row to its terminal status, recording
// the affected business (on success) or the collected errors (on failure).
func CloseIngestionLog(ctx context.Context, db *gorm.DB, id string, status domain.IngestionStatus, businessID, errText string) error {
	return db.WithContext(ctx).
		Model(&domain.IngestionLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"business_id": businessID,
			"errors":      errText,
		}).Error
}
