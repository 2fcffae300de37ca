// API key management handlers (dashboard surface).
//
// The plaintext secret appears exactly once, in the creation response;
// every other endpoint returns registry rows with the hash excluded from
// serialization.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/romapi/go-directory-backend/internal/domain"
)

// KeyService defines the API-key lifecycle operations consumed by HTTP
// handlers.
type KeyService interface {
	CreateKey(ctx context.Context, userID, name string, plan domain.Plan, expiresAt *time.Time) (*domain.APIKey, string, error)
	ListKeys(ctx context.Context, userID string) ([]domain.APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
}

// CreateKeyRequest is the JSON payload for issuing an API key.
type CreateKeyRequest struct {
	Name      string     `json:"name"`
	Plan      string     `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateKeyResponse carries the new registry row plus the one-time
// plaintext secret.
type CreateKeyResponse struct {
	Key *domain.APIKey `json:"key"`
	// Secret is shown exactly once; it cannot be recovered later.
	Secret string `json:"secret"`
}

// CreateAPIKey issues a key for the calling user.
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid, _ := identity(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}
	plan := domain.Plan(strings.ToUpper(req.Plan))
	if plan == "" {
		plan = domain.PlanFree
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "expires_at must be in the future")
		return
	}

	key, secret, err := h.keySvc.CreateKey(c.Request.Context(), uid, req.Name, plan, req.ExpiresAt)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, CreateKeyResponse{Key: key, Secret: secret})
}

// ListAPIKeys returns the calling user's keys, hashes omitted.
func (h *Handlers) ListAPIKeys(c *gin.Context) {
	uid, _ := identity(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	keys, err := h.keySvc.ListKeys(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	ok(c, http.StatusOK, gin.H{"keys": keys})
}

// RevokeAPIKey soft-revokes one of the calling user's keys.
func (h *Handlers) RevokeAPIKey(c *gin.Context) {
	uid, _ := identity(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	if err := h.keySvc.Revoke(c.Request.Context(), uid, c.Param("id")); err != nil {
		mapServiceErr(c, err)
		return
	}
	noContent(c)
}
