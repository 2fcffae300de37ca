package services

import (
	"strings"
	"testing"

	"github.com/romapi/go-directory-backend/internal/domain"
)

func TestNormalizeDefaults(t *testing.T) {
	var s BusinessQuerySpec
	s.Normalize()

	if s.Page != 1 {
		t.Fatalf("Page = %d, want 1", s.Page)
	}
	if s.Limit != DefaultPageSize {
		t.Fatalf("Limit = %d, want %d", s.Limit, DefaultPageSize)
	}
	if s.SortBy != SortByCreated {
		t.Fatalf("SortBy = %q, want %q", s.SortBy, SortByCreated)
	}
	if s.SortOrder != "desc" {
		t.Fatalf("SortOrder = %q, want desc", s.SortOrder)
	}
}

func TestNormalizeClamps(t *testing.T) {
	s := BusinessQuerySpec{
		Page:  -3,
		Limit: 5000,
		Geo:   &GeoOrigin{Latitude: 4, Longitude: 9, RadiusKm: 900},
	}
	s.Normalize()

	if s.Page != 1 {
		t.Fatalf("Page = %d, want 1", s.Page)
	}
	if s.Limit != MaxPageSize {
		t.Fatalf("Limit = %d, want %d", s.Limit, MaxPageSize)
	}
	if s.Geo.RadiusKm != MaxRadiusKm {
		t.Fatalf("RadiusKm = %v, want %d", s.Geo.RadiusKm, MaxRadiusKm)
	}
}

func TestNormalizeDistanceSortRequiresOrigin(t *testing.T) {
	s := BusinessQuerySpec{SortBy: SortByDistance}
	s.Normalize()
	if s.SortBy != SortByCreated {
		t.Fatalf("SortBy = %q, want fallback to %q", s.SortBy, SortByCreated)
	}

	s = BusinessQuerySpec{SortBy: SortByDistance, Geo: &GeoOrigin{Latitude: 4, Longitude: 9}}
	s.Normalize()
	if s.SortBy != SortByDistance {
		t.Fatalf("SortBy = %q, want %q kept with origin", s.SortBy, SortByDistance)
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	featured := true
	a := BusinessQuerySpec{
		Page:     2,
		Limit:    20,
		Search:   "  bakery  ",
		City:     "Douala",
		Status:   domain.StatusActive,
		Featured: &featured,
		Geo:      &GeoOrigin{Latitude: 4.0511, Longitude: 9.7679, RadiusKm: 25},
		SortBy:   SortByDistance,
	}
	a.Normalize()

	// Same logical query built independently, with defaults left to
	// normalization instead of spelled out.
	f2 := true
	b := BusinessQuerySpec{
		Page:     2,
		Search:   "bakery",
		City:     "Douala",
		Status:   domain.StatusActive,
		Featured: &f2,
		Geo:      &GeoOrigin{Latitude: 4.0511, Longitude: 9.7679, RadiusKm: 25},
		SortBy:   SortByDistance,
	}
	b.Normalize()

	if ka, kb := a.CacheKey(), b.CacheKey(); ka != kb {
		t.Fatalf("cache keys differ:\n  %s\n  %s", ka, kb)
	}
}

func TestCacheKeyDistinguishesQueries(t *testing.T) {
	a := BusinessQuerySpec{Search: "bakery"}
	a.Normalize()
	b := BusinessQuerySpec{Search: "pharmacy"}
	b.Normalize()

	if a.CacheKey() == b.CacheKey() {
		t.Fatal("different queries produced the same cache key")
	}
}

func TestCacheKeyPrefixes(t *testing.T) {
	var s BusinessQuerySpec
	s.Normalize()
	if !strings.HasPrefix(s.CacheKey(), "listing:") {
		t.Fatalf("listing key %q missing prefix", s.CacheKey())
	}
	if got := DetailCacheKey("abc"); got != "detail:abc" {
		t.Fatalf("DetailCacheKey = %q", got)
	}
}
