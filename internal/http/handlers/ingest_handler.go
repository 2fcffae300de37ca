// Feed ingestion handler (machine surface).
//
// Accepts one feed record per call from authenticated machine callers.
// Every attempt, valid or not, leaves an ingestion log row behind.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/services"
)

// IngestService defines the feed import operation consumed by HTTP
// handlers.
type IngestService interface {
	Ingest(ctx context.Context, source string, feed services.FeedBusiness) (*domain.Business, error)
}

// IngestRequest is the JSON payload for importing one feed record.
type IngestRequest struct {
	// Source identifies the feed (scraper name, partner id).
	Source   string                `json:"source"`
	Business services.FeedBusiness `json:"business"`
}

// IngestBusiness imports one feed record as a pending listing.
func (h *Handlers) IngestBusiness(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "source is required")
		return
	}

	b, err := h.ingestSvc.Ingest(c.Request.Context(), req.Source, req.Business)
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusCreated, b)
}
