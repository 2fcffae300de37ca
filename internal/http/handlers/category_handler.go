// Category HTTP handlers.
//
// Categories are low-churn, so the listing endpoint supports weak ETags
// derived from table stats: clients revalidate with If-None-Match and
// usually get a 304 back.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/services"
	"github.com/romapi/go-directory-backend/internal/utils"
)

// CategoryService defines the category operations consumed by HTTP
// handlers.
type CategoryService interface {
	Create(ctx context.Context, in services.CategoryInput) (*domain.Category, error)
	Get(ctx context.Context, ref string) (*domain.Category, error)
	List(ctx context.Context, search string, page, limit int, sortDesc bool) ([]domain.Category, int64, error)
	Update(ctx context.Context, id string, in services.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id string) error
	// Stats returns the row count and newest update time, for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// CategoryRequest is the JSON payload for creating or updating a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// ListCategoriesResponse wraps a page of categories with the total count.
type ListCategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// ListCategories serves a paginated category listing with weak ETag
// revalidation.
func (h *Handlers) ListCategories(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check, best effort: a stats failure just skips revalidation.
	if count, maxTS, err := h.categorySvc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"categories:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page := utils.AtoiDefault(c.Query("page"), 1)
	limit := utils.AtoiDefault(c.Query("limit"), services.DefaultPageSize)
	sortDesc := strings.EqualFold(c.Query("sort_order"), "desc")

	items, total, err := h.categorySvc.List(ctx, c.Query("search"), page, limit, sortDesc)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Category{}
	}
	ok(c, http.StatusOK, ListCategoriesResponse{
		Categories: items,
		Total:      total,
		Page:       page,
		Limit:      limit,
	})
}

// GetCategory serves one category by id or slug.
func (h *Handlers) GetCategory(c *gin.Context) {
	cat, err := h.categorySvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusOK, cat)
}

// CreateCategory inserts a new category (admin only, enforced at routing).
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	cat, err := h.categorySvc.Create(c.Request.Context(), services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// UpdateCategory applies changes to a category.
func (h *Handlers) UpdateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cat, err := h.categorySvc.Update(c.Request.Context(), c.Param("id"), services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusOK, cat)
}

// DeleteCategory removes a category; refused while businesses reference it.
func (h *Handlers) DeleteCategory(c *gin.Context) {
	if err := h.categorySvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		mapServiceErr(c, err)
		return
	}
	noContent(c)
}
