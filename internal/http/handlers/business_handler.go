// Business HTTP handlers.
//
// This file exposes the directory's core endpoints:
//   - GET    /businesses        (cached listing with filters, geo, sort)
//   - GET    /businesses/{id}   (cached detail, id or slug)
//   - POST   /businesses        (create)
//   - PUT    /businesses/{id}   (update)
//   - DELETE /businesses/{id}   (delete)
//
// Handlers are transport-thin: they parse and validate input, call the
// service layer, and translate results (and service errors) into HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/services"
	"github.com/romapi/go-directory-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BusinessService defines the directory operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type BusinessService interface {
	// List serves one cached listing page for the query spec.
	List(ctx context.Context, spec services.BusinessQuerySpec) (*services.BusinessPage, error)
	// Detail serves one cached business by ID, recording a view.
	Detail(ctx context.Context, id string) (*domain.Business, error)
	// DetailBySlug resolves a public slug, recording a view.
	DetailBySlug(ctx context.Context, slug string) (*domain.Business, error)
	// Create inserts a listing owned by ownerID.
	Create(ctx context.Context, ownerID string, role domain.UserRole, in services.BusinessInput) (*domain.Business, error)
	// Update applies changes; owner or admin only.
	Update(ctx context.Context, callerID string, role domain.UserRole, id string, in services.BusinessInput) (*domain.Business, error)
	// Delete removes a listing; owner or admin only.
	Delete(ctx context.Context, callerID string, role domain.UserRole, id string) error
	// ViewsToday returns the business's daily view counter.
	ViewsToday(ctx context.Context, id string) int64
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for businesses, categories, API keys,
// and ingestion. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	businessSvc BusinessService
	categorySvc CategoryService
	keySvc      KeyService
	ingestSvc   IngestService
}

// New constructs a Handlers instance bound to the given services.
func New(businessSvc BusinessService, categorySvc CategoryService, keySvc KeyService, ingestSvc IngestService) *Handlers {
	return &Handlers{
		businessSvc: businessSvc,
		categorySvc: categorySvc,
		keySvc:      keySvc,
		ingestSvc:   ingestSvc,
	}
}

// identity extracts the caller's user id and role from the Gin context (set
// by the admission middleware). Dashboard routes that sit behind an
// external auth proxy fall back to the X-User-ID / X-User-Role headers.
func identity(c *gin.Context) (string, domain.UserRole) {
	id := c.GetString("userID")
	role := domain.UserRole(c.GetString("userRole"))
	if id == "" && c.Request != nil {
		id = strings.TrimSpace(c.GetHeader("X-User-ID"))
		if r := strings.TrimSpace(c.GetHeader("X-User-Role")); r != "" {
			role = domain.UserRole(r)
		}
	}
	if role == "" {
		role = domain.RoleUser
	}
	return id, role
}

//
// DTOs
//

// BusinessRequest is the JSON payload for creating or updating a business.
type BusinessRequest struct {
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
	Logo        string   `json:"logo"`
	Category    string   `json:"category"` // id or slug
	Plan        string   `json:"plan"`
	Featured    *bool    `json:"featured"`
}

func (r BusinessRequest) toInput() services.BusinessInput {
	return services.BusinessInput{
		Name:        r.Name,
		Description: r.Description,
		Email:       r.Email,
		Phone:       r.Phone,
		Website:     r.Website,
		Address:     r.Address,
		City:        r.City,
		Region:      r.Region,
		PostalCode:  r.PostalCode,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Logo:        r.Logo,
		Category:    r.Category,
		Plan:        domain.Plan(strings.ToUpper(r.Plan)),
		Featured:    r.Featured,
	}
}

//
// Helpers
//

// querySpec parses the listing query parameters into a query spec. The
// service normalizes it, so this only shapes the raw values.
func querySpec(c *gin.Context) services.BusinessQuerySpec {
	spec := services.BusinessQuerySpec{
		Page:      utils.AtoiDefault(c.Query("page"), 1),
		Limit:     utils.AtoiDefault(c.Query("limit"), services.DefaultPageSize),
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		City:      c.Query("city"),
		Region:    c.Query("region"),
		Status:    domain.BusinessStatus(strings.ToUpper(c.Query("status"))),
		Plan:      domain.Plan(strings.ToUpper(c.Query("plan"))),
		Featured:  utils.ParseBoolPtr(c.Query("featured")),
		SortBy:    c.Query("sort_by"),
		SortOrder: strings.ToLower(c.Query("sort_order")),
	}

	lat := utils.ParseFloatPtr(c.Query("latitude"))
	lon := utils.ParseFloatPtr(c.Query("longitude"))
	if lat != nil && lon != nil {
		radius := utils.ParseFloatPtr(c.Query("radius"))
		g := &services.GeoOrigin{Latitude: *lat, Longitude: *lon}
		if radius != nil {
			g.RadiusKm = *radius
		}
		spec.Geo = g
	}
	return spec
}

// mapServiceErr translates service sentinel errors into HTTP failures;
// anything unrecognized becomes a 500.
func mapServiceErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBusinessNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "business not found")
	case errors.Is(err, services.ErrCategoryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "category not found")
	case errors.Is(err, services.ErrKeyNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "api key not found")
	case errors.Is(err, services.ErrNotOwner):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not the owner of this resource")
	case errors.Is(err, services.ErrSlugTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, "slug already in use")
	case errors.Is(err, services.ErrCategoryInUse):
		fail(c, http.StatusConflict, ErrCodeConflict, "category still has businesses")
	case errors.Is(err, services.ErrInvalidFeedRecord):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid feed record")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// ListBusinesses serves a filtered, paginated, optionally geo-ranked page
// of businesses.
func (h *Handlers) ListBusinesses(c *gin.Context) {
	page, err := h.businessSvc.List(c.Request.Context(), querySpec(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, page)
}

// GetBusiness serves one business by UUID or public slug.
func (h *Handlers) GetBusiness(c *gin.Context) {
	ref := c.Param("id")

	var (
		b   *domain.Business
		err error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		b, err = h.businessSvc.Detail(c.Request.Context(), ref)
	} else {
		b, err = h.businessSvc.DetailBySlug(c.Request.Context(), ref)
	}
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// GetBusinessStats serves the owner-facing view analytics for a business.
func (h *Handlers) GetBusinessStats(c *gin.Context) {
	id := c.Param("id")
	b, err := h.businessSvc.Detail(c.Request.Context(), id)
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"id":          b.ID,
		"view_count":  b.ViewCount,
		"views_today": h.businessSvc.ViewsToday(c.Request.Context(), id),
	})
}

// CreateBusiness inserts a listing owned by the caller.
func (h *Handlers) CreateBusiness(c *gin.Context) {
	var req BusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	uid, role := identity(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	b, err := h.businessSvc.Create(c.Request.Context(), uid, role, req.toInput())
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusCreated, b)
}

// UpdateBusiness applies changes to a listing owned by the caller.
func (h *Handlers) UpdateBusiness(c *gin.Context) {
	var req BusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid, role := identity(c)
	b, err := h.businessSvc.Update(c.Request.Context(), uid, role, c.Param("id"), req.toInput())
	if err != nil {
		mapServiceErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// DeleteBusiness removes a listing owned by the caller.
func (h *Handlers) DeleteBusiness(c *gin.Context) {
	uid, role := identity(c)
	if err := h.businessSvc.Delete(c.Request.Context(), uid, role, c.Param("id")); err != nil {
		mapServiceErr(c, err)
		return
	}
	noContent(c)
}
