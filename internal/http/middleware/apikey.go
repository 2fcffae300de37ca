// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements API-key admission at the transport edge: credential
// extraction from the accepted request locations, delegation to the
// admission service, and translation of its verdict into HTTP semantics
// (401 for anything credential-shaped, 429 with rate headers for an
// exhausted window).
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/services"
)

// Context keys populated by RequireAPIKey for downstream handlers.
const (
	ctxKeyAPIKeyID = "apiKeyID"
	ctxKeyUserID   = "userID"
	ctxKeyUserRole = "userRole"
	ctxKeyCaller   = "caller"
)

// Authenticator is the admission contract this middleware needs.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*services.AuthorizedCaller, error)
	// OverQuota reports whether the key has exhausted its monthly quota.
	// Quota is advisory here: it surfaces in headers, never as a rejection.
	OverQuota(key *domain.APIKey) bool
}

// ExtractAPIKey pulls the credential from the request, in priority order:
// Authorization: Bearer, then the X-API-Key header, then the api_key query
// parameter, then its apikey alias. The first location that carries a
// non-empty value wins; later locations are not consulted.
func ExtractAPIKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if v := strings.TrimSpace(rest); v != "" {
				return v
			}
		}
	}
	if v := strings.TrimSpace(c.GetHeader("X-API-Key")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Query("api_key")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("apikey"))
}

// RequireAPIKey returns a middleware that admits only authenticated machine
// callers. Missing and invalid credentials both map to 401 with
// deliberately similar bodies; an exhausted rate window maps to 429 with
// X-RateLimit-Limit and Retry-After headers.
//
// On success the resolved caller is stored in the context (CallerFrom) and
// the identity keys are set for access logging.
func RequireAPIKey(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := auth.Authenticate(c.Request.Context(), ExtractAPIKey(c))
		if err != nil {
			if limit, ok := services.IsRateLimited(err); ok {
				c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
				c.Header("Retry-After", "3600")
				abortEnvelope(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
				return
			}
			abortEnvelope(c, http.StatusUnauthorized, "unauthorized", "invalid or missing api key")
			return
		}

		if caller.Key.QuotaLimit > 0 {
			c.Header("X-Quota-Limit", strconv.FormatInt(caller.Key.QuotaLimit, 10))
			c.Header("X-Quota-Used", strconv.FormatInt(caller.Key.UsageCount, 10))
			if auth.OverQuota(caller.Key) {
				c.Header("X-Quota-Exceeded", "true")
			}
		}

		c.Set(ctxKeyCaller, caller)
		c.Set(ctxKeyAPIKeyID, caller.Key.ID)
		c.Set(ctxKeyUserID, caller.User.ID)
		c.Set(ctxKeyUserRole, string(caller.User.Role))
		c.Next()
	}
}

// CallerFrom returns the admitted caller stored by RequireAPIKey, or nil on
// routes that do not require a key.
func CallerFrom(c *gin.Context) *services.AuthorizedCaller {
	if v, ok := c.Get(ctxKeyCaller); ok {
		if caller, ok := v.(*services.AuthorizedCaller); ok {
			return caller
		}
	}
	return nil
}

// abortEnvelope writes the standard error envelope without importing the
// handlers package (which depends on this one).
func abortEnvelope(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
