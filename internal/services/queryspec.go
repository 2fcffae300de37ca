// Package services — BusinessQuerySpec.
//
// This file defines the strongly-typed value object describing one listing
// query (filters, pagination, geo origin, sort) and its deterministic
// normalization. Normalization matters because the cache key is derived
// from the spec: two logically identical queries must map to the same
// cache entry no matter how or where they were constructed.
package services

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// Sort fields accepted by BusinessQuerySpec. SortByDistance is synthetic:
// it is only honored when a geo origin is present, otherwise normalization
// falls back to SortByCreated.
const (
	SortByName     = "name"
	SortByCreated  = "created_at"
	SortByViews    = "view_count"
	SortByFeatured = "featured"
	SortByDistance = "distance"
)

// Pagination bounds for listing queries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultRadiusKm = 10
	MaxRadiusKm     = 100
)

// Cache key namespaces. Listing entries are swept by prefix on
// invalidation; detail entries are deleted individually.
const (
	listingKeyPrefix = "listing:"
	detailKeyPrefix  = "detail:"
)

// DetailCacheKey returns the cache key for one business detail entry.
func DetailCacheKey(id string) string {
	return detailKeyPrefix + id
}

// GeoOrigin is the optional query origin for distance filtering/ranking.
type GeoOrigin struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// BusinessQuerySpec describes one listing query. The zero value is a valid
// "first page, newest first" query; Normalize applies defaults and clamps
// in place and must be called before the spec is translated or keyed.
type BusinessQuerySpec struct {
	Page  int
	Limit int

	Search   string
	Category string // id or slug
	City     string
	Region   string
	Status   domain.BusinessStatus
	Plan     domain.Plan
	Featured *bool

	Geo *GeoOrigin

	SortBy    string
	SortOrder string // "asc" | "desc"
}

// Normalize applies defaults and clamps deterministically: identical logical
// queries always normalize to identical specs.
func (s *BusinessQuerySpec) Normalize() {
	if s.Page < 1 {
		s.Page = 1
	}
	if s.Limit < 1 {
		s.Limit = DefaultPageSize
	}
	if s.Limit > MaxPageSize {
		s.Limit = MaxPageSize
	}

	s.Search = strings.TrimSpace(s.Search)
	s.Category = strings.TrimSpace(s.Category)
	s.City = strings.TrimSpace(s.City)
	s.Region = strings.TrimSpace(s.Region)

	if s.Geo != nil {
		if s.Geo.RadiusKm < 1 {
			s.Geo.RadiusKm = DefaultRadiusKm
		}
		if s.Geo.RadiusKm > MaxRadiusKm {
			s.Geo.RadiusKm = MaxRadiusKm
		}
	}

	switch s.SortBy {
	case SortByName, SortByCreated, SortByViews, SortByFeatured:
	case SortByDistance:
		if s.Geo == nil {
			s.SortBy = SortByCreated
		}
	default:
		s.SortBy = SortByCreated
	}

	switch s.SortOrder {
	case "asc", "desc":
	default:
		s.SortOrder = "desc"
	}
}

// CacheKey returns the deterministic cache key for this spec:
// "listing:" + base64 of the sorted field=value pairs. Callers must
// Normalize first. Values are stringified canonically (floats via
// strconv.FormatFloat with -1 precision, bools via FormatBool) so the key
// is independent of the call site's source types.
func (s *BusinessQuerySpec) CacheKey() string {
	pairs := []string{
		"limit:" + strconv.Itoa(s.Limit),
		"page:" + strconv.Itoa(s.Page),
		"sortBy:" + s.SortBy,
		"sortOrder:" + s.SortOrder,
	}
	add := func(k, v string) {
		if v != "" {
			pairs = append(pairs, k+":"+v)
		}
	}
	add("search", s.Search)
	add("category", s.Category)
	add("city", s.City)
	add("region", s.Region)
	add("status", string(s.Status))
	add("plan", string(s.Plan))
	if s.Featured != nil {
		pairs = append(pairs, "featured:"+strconv.FormatBool(*s.Featured))
	}
	if s.Geo != nil {
		pairs = append(pairs,
			"latitude:"+strconv.FormatFloat(s.Geo.Latitude, 'f', -1, 64),
			"longitude:"+strconv.FormatFloat(s.Geo.Longitude, 'f', -1, 64),
			"radius:"+strconv.FormatFloat(s.Geo.RadiusKm, 'f', -1, 64),
		)
	}

	sort.Strings(pairs)
	return listingKeyPrefix + base64.StdEncoding.EncodeToString([]byte(strings.Join(pairs, "|")))
}
