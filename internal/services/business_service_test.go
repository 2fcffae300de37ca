package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/cache"
	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/repo"
)

// fakeBusinessRepo is an in-memory BusinessRepo. It applies only the filter
// dimensions these tests exercise (status and bounding box) and counts
// calls so cache behavior can be asserted.
type fakeBusinessRepo struct {
	mu         sync.Mutex
	businesses map[string]*domain.Business
	categories map[string]*domain.Category

	listCalls int
	findCalls int
	viewBumps map[string]int
}

func newFakeBusinessRepo() *fakeBusinessRepo {
	return &fakeBusinessRepo{
		businesses: map[string]*domain.Business{},
		categories: map[string]*domain.Category{},
		viewBumps:  map[string]int{},
	}
}

func (f *fakeBusinessRepo) matches(b *domain.Business, fl repo.BusinessFilter) bool {
	if fl.Status != "" && b.Status != fl.Status {
		return false
	}
	if fl.Box != nil {
		if b.Latitude == nil || b.Longitude == nil {
			// Coordinates are required to fall inside a box; the SQL
			// BETWEEN excludes NULLs the same way.
			return false
		}
		if *b.Latitude < fl.Box.MinLat || *b.Latitude > fl.Box.MaxLat ||
			*b.Longitude < fl.Box.MinLon || *b.Longitude > fl.Box.MaxLon {
			return false
		}
	}
	return true
}

func (f *fakeBusinessRepo) ListBusinesses(_ context.Context, _ *gorm.DB, fl repo.BusinessFilter) ([]domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []domain.Business
	for _, b := range f.businesses {
		if f.matches(b, fl) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBusinessRepo) CountBusinesses(_ context.Context, _ *gorm.DB, fl repo.BusinessFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.businesses {
		if f.matches(b, fl) {
			n++
		}
	}
	return n, nil
}

func (f *fakeBusinessRepo) FindBusinessByID(_ context.Context, _ *gorm.DB, id string) (*domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	b, ok := f.businesses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBusinessRepo) FindBusinessBySlug(_ context.Context, _ *gorm.DB, slug string) (*domain.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.businesses {
		if b.Slug == slug {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBusinessRepo) CreateBusiness(_ context.Context, _ *gorm.DB, b *domain.Business) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.businesses[b.ID] = &cp
	return nil
}

func (f *fakeBusinessRepo) UpdateBusiness(_ context.Context, _ *gorm.DB, b *domain.Business) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.businesses[b.ID] = &cp
	return nil
}

func (f *fakeBusinessRepo) DeleteBusiness(_ context.Context, _ *gorm.DB, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.businesses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.businesses, id)
	return nil
}

func (f *fakeBusinessRepo) IncrementBusinessViews(_ context.Context, _ *gorm.DB, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewBumps[id]++
	return nil
}

func (f *fakeBusinessRepo) SlugExists(_ context.Context, _ *gorm.DB, slug, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.businesses {
		if b.Slug == slug && b.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBusinessRepo) FindCategoryByID(_ context.Context, _ *gorm.DB, id string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeBusinessRepo) FindCategoryBySlug(_ context.Context, _ *gorm.DB, slug string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBusinessRepo) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeBusinessRepo) findCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls
}

func (f *fakeBusinessRepo) viewCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewBumps[id]
}

func seedDirectory(repo *fakeBusinessRepo) {
	repo.categories["cat-1"] = &domain.Category{ID: "cat-1", Name: "Restaurants", Slug: "restaurants"}

	lat := func(v float64) *float64 { return &v }
	repo.businesses["b-douala"] = &domain.Business{
		ID: "b-douala", Name: "Douala Bakery", Slug: "douala-bakery",
		CategoryID: "cat-1", OwnerID: "user-1", Status: domain.StatusActive,
		Latitude: lat(4.0511), Longitude: lat(9.7679),
	}
	repo.businesses["b-yaounde"] = &domain.Business{
		ID: "b-yaounde", Name: "Yaounde Grill", Slug: "yaounde-grill",
		CategoryID: "cat-1", OwnerID: "user-1", Status: domain.StatusActive,
		Latitude: lat(3.8480), Longitude: lat(11.5021),
	}
	repo.businesses["b-limbe"] = &domain.Business{
		ID: "b-limbe", Name: "Limbe Beach Cafe", Slug: "limbe-beach-cafe",
		CategoryID: "cat-1", OwnerID: "user-2", Status: domain.StatusActive,
		Latitude: lat(4.0225), Longitude: lat(9.1946),
	}
	repo.businesses["b-nocoords"] = &domain.Business{
		ID: "b-nocoords", Name: "Mystery Shop", Slug: "mystery-shop",
		CategoryID: "cat-1", OwnerID: "user-2", Status: domain.StatusActive,
	}
}

// waitFor polls cond until it holds or the deadline passes. Used for the
// fire-and-forget view accounting.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestListCacheAside(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, cache.NewMemory())

	spec := BusinessQuerySpec{Status: domain.StatusActive}
	first, err := s.List(context.Background(), spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if first.Total != 4 || len(first.Items) != 4 {
		t.Fatalf("total=%d items=%d, want 4/4", first.Total, len(first.Items))
	}
	if fr.listCallCount() != 1 {
		t.Fatalf("listCalls = %d, want 1", fr.listCallCount())
	}

	second, err := s.List(context.Background(), BusinessQuerySpec{Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("List (cached): %v", err)
	}
	if fr.listCallCount() != 1 {
		t.Fatalf("listCalls = %d after cached read, want 1", fr.listCallCount())
	}
	if second.Total != first.Total {
		t.Fatalf("cached total = %d, want %d", second.Total, first.Total)
	}
}

func TestListFailsOpenOnCache(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, brokenStore{})

	page, err := s.List(context.Background(), BusinessQuerySpec{})
	if err != nil {
		t.Fatalf("List with broken cache: %v", err)
	}
	if page.Total != 4 {
		t.Fatalf("Total = %d, want 4", page.Total)
	}
}

func TestListPageMetadata(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, nil)

	page, err := s.List(context.Background(), BusinessQuerySpec{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalPages != 2 {
		t.Fatalf("TotalPages = %d, want 2", page.TotalPages)
	}
	if !page.HasNext || page.HasPrev {
		t.Fatalf("HasNext=%v HasPrev=%v, want true/false", page.HasNext, page.HasPrev)
	}
}

func TestListGeoRanking(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, nil)

	// Origin at Douala with a 100 km radius: Limbe (~65 km west) stays in,
	// Yaounde (~195 km east) and the coordinate-less listing fall out.
	page, err := s.List(context.Background(), BusinessQuerySpec{
		Geo:       &GeoOrigin{Latitude: 4.0511, Longitude: 9.7679, RadiusKm: 100},
		SortBy:    SortByDistance,
		SortOrder: "asc",
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2 inside the box", len(page.Items))
	}
	if page.Items[0].ID != "b-douala" || page.Items[1].ID != "b-limbe" {
		t.Fatalf("order = %s,%s; want b-douala,b-limbe", page.Items[0].ID, page.Items[1].ID)
	}
	if page.Items[0].Distance == nil || *page.Items[0].Distance > 1 {
		t.Fatalf("origin business distance = %v, want ~0", page.Items[0].Distance)
	}
	if page.Items[1].Distance == nil || *page.Items[1].Distance < 50 || *page.Items[1].Distance > 80 {
		t.Fatalf("Limbe distance = %v, want 50-80 km", page.Items[1].Distance)
	}
}

func TestDistanceRankingNilLast(t *testing.T) {
	lat := func(v float64) *float64 { return &v }
	items := []domain.Business{
		{ID: "far", Latitude: lat(10), Longitude: lat(10)},
		{ID: "none"},
		{ID: "near", Latitude: lat(4.06), Longitude: lat(9.77)},
	}
	origin := &GeoOrigin{Latitude: 4.0511, Longitude: 9.7679}

	annotateDistances(items, origin)
	rankByDistance(items, true)
	if items[0].ID != "near" || items[2].ID != "none" {
		t.Fatalf("asc order = %s,%s,%s", items[0].ID, items[1].ID, items[2].ID)
	}

	rankByDistance(items, false)
	if items[0].ID != "far" || items[2].ID != "none" {
		t.Fatalf("desc order = %s,%s,%s; nil must stay after valid", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestDetailCacheAsideAndViews(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	store := cache.NewMemory()
	s := NewBusinessService(nil, fr, store)

	b, err := s.Detail(context.Background(), "b-douala")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if b.Name != "Douala Bakery" {
		t.Fatalf("Name = %q", b.Name)
	}
	if fr.findCallCount() != 1 {
		t.Fatalf("findCalls = %d, want 1", fr.findCallCount())
	}

	if _, err := s.Detail(context.Background(), "b-douala"); err != nil {
		t.Fatalf("Detail (cached): %v", err)
	}
	if fr.findCallCount() != 1 {
		t.Fatalf("findCalls = %d after cached read, want 1", fr.findCallCount())
	}

	// Both reads count as visits, cache hit included.
	waitFor(t, func() bool { return fr.viewCount("b-douala") == 2 })
	waitFor(t, func() bool {
		return s.ViewsToday(context.Background(), "b-douala") == 2
	})
}

func TestDetailNotFound(t *testing.T) {
	s := NewBusinessService(nil, newFakeBusinessRepo(), nil)
	if _, err := s.Detail(context.Background(), "ghost"); !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("err = %v, want ErrBusinessNotFound", err)
	}
}

func TestCreateValidatesCategory(t *testing.T) {
	fr := newFakeBusinessRepo()
	s := NewBusinessService(nil, fr, nil)

	_, err := s.Create(context.Background(), "user-1", domain.RoleUser, BusinessInput{
		Name: "Lone Shop", Category: "no-such-category",
	})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("err = %v, want ErrCategoryNotFound", err)
	}
}

func TestCreateSlugUniqueness(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, nil)

	first, err := s.Create(context.Background(), "user-1", domain.RoleUser, BusinessInput{
		Name: "Café Müller", Category: "restaurants",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Slug != "cafe-muller" {
		t.Fatalf("Slug = %q, want cafe-muller", first.Slug)
	}
	if first.Status != domain.StatusPending {
		t.Fatalf("Status = %q, want PENDING for non-admin create", first.Status)
	}

	second, err := s.Create(context.Background(), "user-1", domain.RoleUser, BusinessInput{
		Name: "Café Müller", Category: "cat-1",
	})
	if err != nil {
		t.Fatalf("Create duplicate name: %v", err)
	}
	if second.Slug != "cafe-muller-2" {
		t.Fatalf("Slug = %q, want cafe-muller-2", second.Slug)
	}
}

func TestUpdateOwnership(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, nil)

	_, err := s.Update(context.Background(), "intruder", domain.RoleUser, "b-douala", BusinessInput{Phone: "+237 600 000 000"})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	// Admins bypass ownership.
	if _, err := s.Update(context.Background(), "intruder", domain.RoleAdmin, "b-douala", BusinessInput{Phone: "+237 600 000 000"}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestWriteInvalidatesCaches(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	store := cache.NewMemory()
	s := NewBusinessService(nil, fr, store)

	if _, err := s.List(context.Background(), BusinessQuerySpec{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := s.Detail(context.Background(), "b-douala"); err != nil {
		t.Fatalf("Detail: %v", err)
	}

	if _, err := s.Update(context.Background(), "user-1", domain.RoleUser, "b-douala", BusinessInput{Description: "fresh bread daily"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if data, _ := store.Get(context.Background(), DetailCacheKey("b-douala")); data != nil {
		t.Fatal("detail entry survived invalidation")
	}
	keys, _ := store.Keys(context.Background(), "listing:*")
	if len(keys) != 0 {
		t.Fatalf("%d listing entries survived invalidation", len(keys))
	}
}

func TestDeleteOwnership(t *testing.T) {
	fr := newFakeBusinessRepo()
	seedDirectory(fr)
	s := NewBusinessService(nil, fr, nil)

	if err := s.Delete(context.Background(), "intruder", domain.RoleUser, "b-douala"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if err := s.Delete(context.Background(), "user-1", domain.RoleUser, "b-douala"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := s.Delete(context.Background(), "user-1", domain.RoleUser, "b-douala"); !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("second delete err = %v, want ErrBusinessNotFound", err)
	}
}
