// Package services – IngestionService
//
// Imports businesses from external feeds (scrapers, partner exports). Every
// attempt is traced in an ingestion log row opened before any validation
// and closed in a terminal state, so failed payloads stay replayable. Feed
// categories arrive as free-text names and are matched leniently, creating
// the category on first sight.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// IngestionRepo defines the repository contract required by IngestionService.
type IngestionRepo interface {
	CreateIngestionLog(ctx context.Context, db *gorm.DB, source, rawData string) (*domain.IngestionLog, error)
	CloseIngestionLog(ctx context.Context, db *gorm.DB, id string, status domain.IngestionStatus, businessID, errText string) error
	FindCategoryByNameOrSlug(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error
}

// FeedBusiness is one inbound feed record. Coordinates are optional; the
// category is a free-text heading from the source system.
type FeedBusiness struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	PostalCode  string   `json:"postal_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Category    string   `json:"category"`
}

// IngestionService imports feed records as pending businesses.
type IngestionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the ingestion repository.
	Repo IngestionRepo
	// Businesses performs the actual create so imports share slug
	// generation and cache invalidation with the API write path.
	Businesses *BusinessService

	// OwnerID is the system account that owns imported listings until
	// they are claimed.
	OwnerID string
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(db *gorm.DB, r IngestionRepo, businesses *BusinessService, ownerID string) *IngestionService {
	return &IngestionService{DB: db, Repo: r, Businesses: businesses, OwnerID: ownerID}
}

// Ingest imports one feed record. The log row is opened before validation
// so malformed payloads are traced too; it is closed SUCCESS or FAILED on
// every path.
func (s *IngestionService) Ingest(ctx context.Context, source string, feed FeedBusiness) (*domain.Business, error) {
	raw, _ := json.Marshal(feed)
	logRow, err := s.Repo.CreateIngestionLog(ctx, s.DB, source, string(raw))
	if err != nil {
		return nil, err
	}

	var problems []string
	if strings.TrimSpace(feed.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(feed.Category) == "" {
		problems = append(problems, "category is required")
	}
	if len(problems) > 0 {
		s.closeLog(ctx, logRow.ID, domain.IngestionFailed, "", strings.Join(problems, "\n"))
		return nil, ErrInvalidFeedRecord
	}

	cat, err := s.findOrCreateCategory(ctx, feed.Category)
	if err != nil {
		s.closeLog(ctx, logRow.ID, domain.IngestionFailed, "", err.Error())
		return nil, err
	}

	b, err := s.Businesses.Create(ctx, s.OwnerID, domain.RoleUser, BusinessInput{
		Name:        feed.Name,
		Description: feed.Description,
		Email:       feed.Email,
		Phone:       feed.Phone,
		Website:     feed.Website,
		Address:     feed.Address,
		City:        feed.City,
		Region:      feed.Region,
		PostalCode:  feed.PostalCode,
		Latitude:    feed.Latitude,
		Longitude:   feed.Longitude,
		Category:    cat.ID,
	})
	if err != nil {
		s.closeLog(ctx, logRow.ID, domain.IngestionFailed, "", err.Error())
		return nil, err
	}

	s.closeLog(ctx, logRow.ID, domain.IngestionSuccess, b.ID, "")
	return b, nil
}

// findOrCreateCategory resolves a free-text feed heading, creating the
// category on first sight.
func (s *IngestionService) findOrCreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)

	cat, err := s.Repo.FindCategoryByNameOrSlug(ctx, s.DB, name, slug)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cat = &domain.Category{
		ID:   uuid.NewString(),
		Name: name,
		Slug: slug,
	}
	if err := s.Repo.CreateCategory(ctx, s.DB, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// closeLog is best-effort: losing the terminal status must not mask the
// ingestion result itself.
func (s *IngestionService) closeLog(ctx context.Context, id string, status domain.IngestionStatus, businessID, errText string) {
	bestEffort("ingest.close_log", func() error {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.Repo.CloseIngestionLog(cctx, s.DB, id, status, businessID, errText)
	})
}
