// Package services defines the business logic for admission control,
// business/category queries, API-key management, and ingestion. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Admission errors.
var (
	// ErrMissingAPIKey is returned when no key material is present in any
	// of the accepted request locations.
	ErrMissingAPIKey = errors.New("api key missing")

	// ErrInvalidAPIKey is returned when the presented key is unknown,
	// revoked, or expired. The three cases are deliberately collapsed into
	// one error so callers cannot probe which keys exist.
	ErrInvalidAPIKey = errors.New("api key invalid or expired")
)

// Directory errors.
var (
	// ErrBusinessNotFound indicates the requested business does not exist.
	ErrBusinessNotFound = errors.New("business not found")

	// ErrCategoryNotFound indicates the referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrNotOwner is returned when a caller attempts to mutate a business
	// they do not own and they are not an administrator.
	ErrNotOwner = errors.New("caller does not own this business")

	// ErrSlugTaken is returned when a category slug collides with an
	// existing one.
	ErrSlugTaken = errors.New("slug already in use")

	// ErrCategoryInUse is returned when deleting a category that still has
	// businesses attached.
	ErrCategoryInUse = errors.New("category still has businesses")

	// ErrKeyNotFound indicates the API key to revoke does not exist or is
	// not owned by the caller.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrInvalidFeedRecord is returned when an ingestion payload fails
	// validation; details are recorded on the ingestion log row.
	ErrInvalidFeedRecord = errors.New("invalid feed record")
)

// RateLimitError is returned when a key has exhausted its hourly window.
// It carries the configured ceiling so the transport layer can surface it
// to the caller (response body and X-RateLimit-Limit header).
type RateLimitError struct {
	Limit int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests/hour", e.Limit)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError and, if
// so, returns the ceiling it carries.
func IsRateLimited(err error) (int, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.Limit, true
	}
	return 0, false
}
