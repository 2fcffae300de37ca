// Package services – BusinessService
//
// This file implements the listing and detail query paths with cache-aside
// semantics, geo distance annotation and ranking, view analytics, and the
// business write path (create/update/delete with ownership enforcement and
// cache invalidation).
//
// The cache is an accelerator only: every cache failure degrades to the
// record store, and stale listing pages are bounded by TTL even when an
// invalidation sweep fails.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/cache"
	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/geo"
	"github.com/romapi/go-directory-backend/internal/repo"
)

// Default cache lifetimes for the two read paths. Listing pages churn with
// every write anywhere in the directory, so they expire quickly; details
// only change when their own record does.
const (
	DefaultListTTL   = 5 * time.Minute
	DefaultDetailTTL = 10 * time.Minute
)

// viewsKeyPrefix namespaces the daily per-business view counters.
const viewsKeyPrefix = "views:"

// BusinessRepo defines the repository contract required by BusinessService.
type BusinessRepo interface {
	ListBusinesses(ctx context.Context, db *gorm.DB, f repo.BusinessFilter) ([]domain.Business, error)
	CountBusinesses(ctx context.Context, db *gorm.DB, f repo.BusinessFilter) (int64, error)
	FindBusinessByID(ctx context.Context, db *gorm.DB, id string) (*domain.Business, error)
	FindBusinessBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Business, error)
	CreateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error
	UpdateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error
	DeleteBusiness(ctx context.Context, db *gorm.DB, id string) error
	IncrementBusinessViews(ctx context.Context, db *gorm.DB, id string) error
	SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error)

	FindCategoryByID(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error)
	FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error)
}

// BusinessPage is one page of listing results with pagination metadata.
type BusinessPage struct {
	Items      []domain.Business `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	HasNext    bool              `json:"has_next"`
	HasPrev    bool              `json:"has_prev"`
}

// BusinessInput carries the writable fields of a listing. Pointer fields
// distinguish "absent" from zero on the update path.
type BusinessInput struct {
	Name        string
	Description string
	Email       string
	Phone       string
	Website     string
	Address     string
	City        string
	Region      string
	PostalCode  string
	Latitude    *float64
	Longitude   *float64
	Logo        string
	Category    string // id or slug
	Plan        domain.Plan
	Featured    *bool
}

// BusinessService provides the cached directory query paths and the
// business write path.
type BusinessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the business repository.
	Repo BusinessRepo
	// Cache is the shared query cache. Nil disables caching entirely.
	Cache cache.Store

	ListTTL   time.Duration
	DetailTTL time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewBusinessService constructs a BusinessService with default TTLs.
func NewBusinessService(db *gorm.DB, r BusinessRepo, c cache.Store) *BusinessService {
	return &BusinessService{
		DB:        db,
		Repo:      r,
		Cache:     c,
		ListTTL:   DefaultListTTL,
		DetailTTL: DefaultDetailTTL,
		now:       time.Now,
	}
}

// List serves one listing page, cache-aside. The spec is normalized first so
// equivalent queries share a cache entry. Page and count queries run
// concurrently on a miss; geo queries get distances annotated and, when
// requested, distance-ranked before the page is cached.
func (s *BusinessService) List(ctx context.Context, spec BusinessQuerySpec) (*BusinessPage, error) {
	spec.Normalize()
	key := spec.CacheKey()

	if page, ok := s.cachedPage(ctx, key); ok {
		cacheLookups.WithLabelValues("listing", "hit").Inc()
		return page, nil
	}
	cacheLookups.WithLabelValues("listing", "miss").Inc()

	f := s.toFilter(spec)

	var (
		wg       sync.WaitGroup
		items    []domain.Business
		total    int64
		listErr  error
		countErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		items, listErr = s.Repo.ListBusinesses(ctx, s.DB, f)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.Repo.CountBusinesses(ctx, s.DB, f)
	}()
	wg.Wait()
	if listErr != nil {
		return nil, listErr
	}
	if countErr != nil {
		return nil, countErr
	}

	if spec.Geo != nil {
		annotateDistances(items, spec.Geo)
		if spec.SortBy == SortByDistance {
			rankByDistance(items, spec.SortOrder == "asc")
		}
	}
	if items == nil {
		items = []domain.Business{}
	}

	page := &BusinessPage{
		Items:      items,
		Total:      total,
		Page:       spec.Page,
		Limit:      spec.Limit,
		TotalPages: int((total + int64(spec.Limit) - 1) / int64(spec.Limit)),
	}
	page.HasNext = spec.Page < page.TotalPages
	page.HasPrev = spec.Page > 1 && total > 0

	s.storePage(ctx, key, page)
	return page, nil
}

// Detail serves one business by ID, cache-aside, recording a view either
// way: a cache hit is still a visit.
func (s *BusinessService) Detail(ctx context.Context, id string) (*domain.Business, error) {
	key := DetailCacheKey(id)

	if s.Cache != nil {
		data, err := s.Cache.Get(ctx, key)
		if err != nil {
			bestEffort("cache.detail_get", func() error { return err })
		} else if data != nil {
			var b domain.Business
			if json.Unmarshal(data, &b) == nil {
				cacheLookups.WithLabelValues("detail", "hit").Inc()
				s.recordView(id)
				return &b, nil
			}
		}
	}
	cacheLookups.WithLabelValues("detail", "miss").Inc()

	b, err := s.Repo.FindBusinessByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}

	if s.Cache != nil {
		if data, err := json.Marshal(b); err == nil {
			bestEffort("cache.detail_set", func() error {
				return s.Cache.Set(ctx, key, data, s.DetailTTL)
			})
		}
	}
	s.recordView(id)
	return b, nil
}

// DetailBySlug resolves a public slug to its record. The cache stays keyed
// by ID so slug renames cannot leave orphaned entries; the resolved record
// populates the ID-keyed entry for subsequent lookups.
func (s *BusinessService) DetailBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	b, err := s.Repo.FindBusinessBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}
	if s.Cache != nil {
		if data, err := json.Marshal(b); err == nil {
			bestEffort("cache.detail_set", func() error {
				return s.Cache.Set(ctx, DetailCacheKey(b.ID), data, s.DetailTTL)
			})
		}
	}
	s.recordView(b.ID)
	return b, nil
}

// Create inserts a new listing owned by ownerID. The category reference is
// validated, a unique slug is derived from the name, and new listings start
// in PENDING moderation unless created by an admin.
func (s *BusinessService) Create(ctx context.Context, ownerID string, role domain.UserRole, in BusinessInput) (*domain.Business, error) {
	in.Name = strings.TrimSpace(in.Name)

	cat, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return nil, err
	}

	slug, err := uniqueSlug(ctx, in.Name, "", func(ctx context.Context, slug, excludeID string) (bool, error) {
		return s.Repo.SlugExists(ctx, s.DB, slug, excludeID)
	})
	if err != nil {
		return nil, err
	}

	status := domain.StatusPending
	if role == domain.RoleAdmin {
		status = domain.StatusActive
	}
	plan := in.Plan
	if plan == "" {
		plan = domain.PlanFree
	}

	b := &domain.Business{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        slug,
		Description: in.Description,
		Email:       in.Email,
		Phone:       in.Phone,
		Website:     in.Website,
		Address:     in.Address,
		City:        in.City,
		Region:      in.Region,
		PostalCode:  in.PostalCode,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Logo:        in.Logo,
		CategoryID:  cat.ID,
		OwnerID:     ownerID,
		Status:      status,
		Plan:        plan,
	}
	if in.Featured != nil && role == domain.RoleAdmin {
		b.Featured = *in.Featured
	}

	if err := s.Repo.CreateBusiness(ctx, s.DB, b); err != nil {
		return nil, err
	}
	b.Category = *cat
	s.invalidate(ctx, b.ID)
	return b, nil
}

// Update applies the provided fields to an existing listing. Only the owner
// or an admin may update; a name change re-derives the slug.
func (s *BusinessService) Update(ctx context.Context, callerID string, role domain.UserRole, id string, in BusinessInput) (*domain.Business, error) {
	b, err := s.Repo.FindBusinessByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}
	if b.OwnerID != callerID && role != domain.RoleAdmin {
		return nil, ErrNotOwner
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != b.Name {
		slug, err := uniqueSlug(ctx, name, b.ID, func(ctx context.Context, slug, excludeID string) (bool, error) {
			return s.Repo.SlugExists(ctx, s.DB, slug, excludeID)
		})
		if err != nil {
			return nil, err
		}
		b.Name = name
		b.Slug = slug
	}
	if in.Category != "" {
		cat, err := s.resolveCategory(ctx, in.Category)
		if err != nil {
			return nil, err
		}
		b.CategoryID = cat.ID
		b.Category = *cat
	}
	if in.Description != "" {
		b.Description = in.Description
	}
	if in.Email != "" {
		b.Email = in.Email
	}
	if in.Phone != "" {
		b.Phone = in.Phone
	}
	if in.Website != "" {
		b.Website = in.Website
	}
	if in.Address != "" {
		b.Address = in.Address
	}
	if in.City != "" {
		b.City = in.City
	}
	if in.Region != "" {
		b.Region = in.Region
	}
	if in.PostalCode != "" {
		b.PostalCode = in.PostalCode
	}
	if in.Latitude != nil {
		b.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		b.Longitude = in.Longitude
	}
	if in.Logo != "" {
		b.Logo = in.Logo
	}
	if in.Plan != "" && role == domain.RoleAdmin {
		b.Plan = in.Plan
	}
	if in.Featured != nil && role == domain.RoleAdmin {
		b.Featured = *in.Featured
	}

	if err := s.Repo.UpdateBusiness(ctx, s.DB, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx, b.ID)
	return b, nil
}

// Delete soft-deletes a listing. Only the owner or an admin may delete.
func (s *BusinessService) Delete(ctx context.Context, callerID string, role domain.UserRole, id string) error {
	b, err := s.Repo.FindBusinessByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBusinessNotFound
		}
		return err
	}
	if b.OwnerID != callerID && role != domain.RoleAdmin {
		return ErrNotOwner
	}
	if err := s.Repo.DeleteBusiness(ctx, s.DB, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// ViewsToday returns the daily view counter for a business; zero when the
// counter store is unavailable.
func (s *BusinessService) ViewsToday(ctx context.Context, id string) int64 {
	if s.Cache == nil {
		return 0
	}
	n, err := s.Cache.Count(ctx, s.viewsKey(id))
	if err != nil {
		bestEffort("views.count", func() error { return err })
		return 0
	}
	return n
}

// invalidate drops the cached detail entry and sweeps every listing page.
// Both operations are best-effort: a failed sweep only means readers see
// the previous page until its TTL runs out.
func (s *BusinessService) invalidate(ctx context.Context, id string) {
	if s.Cache == nil {
		return
	}
	bestEffort("cache.invalidate_detail", func() error {
		return s.Cache.Delete(ctx, DetailCacheKey(id))
	})
	bestEffort("cache.invalidate_listings", func() error {
		return cache.DeleteByPattern(ctx, s.Cache, listingKeyPrefix+"*")
	})
}

// recordView bumps both view channels off the request path: the persisted
// per-business total and the dated counter used by dashboards. Detail
// cache hits count too, which is why this cannot ride on the DB read.
func (s *BusinessService) recordView(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		bestEffort("views.persist", func() error {
			return s.Repo.IncrementBusinessViews(ctx, s.DB, id)
		})

		if s.Cache == nil {
			return
		}
		key := s.viewsKey(id)
		bestEffort("views.daily", func() error {
			n, err := s.Cache.Increment(ctx, key)
			if err != nil {
				return err
			}
			if n == 1 {
				return s.Cache.Expire(ctx, key, 24*time.Hour)
			}
			return nil
		})
	}()
}

func (s *BusinessService) viewsKey(id string) string {
	return viewsKeyPrefix + id + ":" + s.now().UTC().Format("2006-01-02")
}

// resolveCategory accepts a category id or slug and returns the row, or
// ErrCategoryNotFound.
func (s *BusinessService) resolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrCategoryNotFound
	}
	cat, err := s.Repo.FindCategoryByID(ctx, s.DB, ref)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cat, err = s.Repo.FindCategoryBySlug(ctx, s.DB, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return cat, nil
}

// toFilter translates a normalized query spec into the repo filter. The
// bounding box is a cheap SQL pre-filter; exact haversine distances are
// computed afterwards in annotateDistances.
func (s *BusinessService) toFilter(spec BusinessQuerySpec) repo.BusinessFilter {
	f := repo.BusinessFilter{
		Search:   spec.Search,
		Category: spec.Category,
		City:     spec.City,
		Region:   spec.Region,
		Status:   spec.Status,
		Plan:     spec.Plan,
		Featured: spec.Featured,
		SortDesc: spec.SortOrder == "desc",
		Offset:   (spec.Page - 1) * spec.Limit,
		Limit:    spec.Limit,
	}
	if spec.SortBy != SortByDistance {
		f.SortField = spec.SortBy
	}
	if spec.Geo != nil {
		box := geo.BoundingBox(spec.Geo.Latitude, spec.Geo.Longitude, spec.Geo.RadiusKm)
		f.Box = &box
	}
	return f
}

// cachedPage attempts a cache read; (nil, false) on miss or any failure.
func (s *BusinessService) cachedPage(ctx context.Context, key string) (*BusinessPage, bool) {
	if s.Cache == nil {
		return nil, false
	}
	data, err := s.Cache.Get(ctx, key)
	if err != nil {
		bestEffort("cache.listing_get", func() error { return err })
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var page BusinessPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (s *BusinessService) storePage(ctx context.Context, key string, page *BusinessPage) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	bestEffort("cache.listing_set", func() error {
		return s.Cache.Set(ctx, key, data, s.ListTTL)
	})
}

// annotateDistances fills Distance for every candidate with stored
// coordinates; candidates without coordinates keep a nil distance and sort
// last.
func annotateDistances(items []domain.Business, origin *GeoOrigin) {
	for i := range items {
		if items[i].Latitude == nil || items[i].Longitude == nil {
			continue
		}
		d := geo.Distance(origin.Latitude, origin.Longitude, *items[i].Latitude, *items[i].Longitude)
		items[i].Distance = &d
	}
}

// rankByDistance orders items in place via the geo package's stable sort.
func rankByDistance(items []domain.Business, ascending bool) {
	ranked := make([]geo.Ranked, len(items))
	for i := range items {
		ranked[i] = &items[i]
	}
	geo.SortByDistance(ranked, ascending)
	out := make([]domain.Business, len(items))
	for i, r := range ranked {
		out[i] = *r.(*domain.Business)
	}
	copy(items, out)
}
