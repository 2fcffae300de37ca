// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and the two rate-limiting layers (anonymous edge
// buckets here, per-key hourly ceilings inside the admission service).
//
// Route surfaces:
//   - Public:    read-only directory browsing, IP rate limited
//   - Machine:   API-key admitted (feed ingestion, partner reads)
//   - Dashboard: key and listing management behind an external auth proxy
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/cache"
	"github.com/romapi/go-directory-backend/internal/config"
	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/http/handlers"
	"github.com/romapi/go-directory-backend/internal/http/middleware"
	"github.com/romapi/go-directory-backend/internal/repo"
	"github.com/romapi/go-directory-backend/internal/services"
)

// keyRepoShim adapts the repository free functions to the services.KeyRepo
// interface. This keeps services decoupled from the concrete repo package
// while reusing existing functions.
type keyRepoShim struct{}

func (keyRepoShim) CreateAPIKey(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	return repo.CreateAPIKey(ctx, db, key)
}

func (keyRepoShim) FindAPIKeyByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIKey, error) {
	return repo.FindAPIKeyByHash(ctx, db, hash)
}

func (keyRepoShim) ListAPIKeys(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIKey, error) {
	return repo.ListAPIKeys(ctx, db, userID)
}

func (keyRepoShim) TouchAPIKeyUsage(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return repo.TouchAPIKeyUsage(ctx, db, id, at)
}

func (keyRepoShim) SetAPIKeyActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	return repo.SetAPIKeyActive(ctx, db, id, userID, active)
}

// businessRepoShim adapts the repository free functions to
// services.BusinessRepo.
type businessRepoShim struct{}

func (businessRepoShim) ListBusinesses(ctx context.Context, db *gorm.DB, f repo.BusinessFilter) ([]domain.Business, error) {
	return repo.ListBusinesses(ctx, db, f)
}

func (businessRepoShim) CountBusinesses(ctx context.Context, db *gorm.DB, f repo.BusinessFilter) (int64, error) {
	return repo.CountBusinesses(ctx, db, f)
}

func (businessRepoShim) FindBusinessByID(ctx context.Context, db *gorm.DB, id string) (*domain.Business, error) {
	return repo.FindBusinessByID(ctx, db, id)
}

func (businessRepoShim) FindBusinessBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Business, error) {
	return repo.FindBusinessBySlug(ctx, db, slug)
}

func (businessRepoShim) CreateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error {
	return repo.CreateBusiness(ctx, db, b)
}

func (businessRepoShim) UpdateBusiness(ctx context.Context, db *gorm.DB, b *domain.Business) error {
	return repo.UpdateBusiness(ctx, db, b)
}

func (businessRepoShim) DeleteBusiness(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteBusiness(ctx, db, id)
}

func (businessRepoShim) IncrementBusinessViews(ctx context.Context, db *gorm.DB, id string) error {
	return repo.IncrementBusinessViews(ctx, db, id)
}

func (businessRepoShim) SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	return repo.SlugExists(ctx, db, slug, excludeID)
}

func (businessRepoShim) FindCategoryByID(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	return repo.FindCategoryByID(ctx, db, id)
}

func (businessRepoShim) FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	return repo.FindCategoryBySlug(ctx, db, slug)
}

// categoryRepoShim adapts the repository free functions to
// services.CategoryRepo.
type categoryRepoShim struct{}

func (categoryRepoShim) CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return repo.CreateCategory(ctx, db, c)
}

func (categoryRepoShim) FindCategoryByID(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	return repo.FindCategoryByID(ctx, db, id)
}

func (categoryRepoShim) FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Category, error) {
	return repo.FindCategoryBySlug(ctx, db, slug)
}

func (categoryRepoShim) ListCategories(ctx context.Context, db *gorm.DB, search string, offset, limit int, sortDesc bool) ([]domain.Category, int64, error) {
	return repo.ListCategories(ctx, db, search, offset, limit, sortDesc)
}

func (categoryRepoShim) CountBusinessesInCategory(ctx context.Context, db *gorm.DB, categoryID string) (int64, error) {
	return repo.CountBusinessesInCategory(ctx, db, categoryID)
}

func (categoryRepoShim) UpdateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return repo.UpdateCategory(ctx, db, c)
}

func (categoryRepoShim) DeleteCategory(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCategory(ctx, db, id)
}

func (categoryRepoShim) CategoriesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.CategoriesStats(ctx, db)
}

// ingestionRepoShim adapts the repository free functions to
// services.IngestionRepo.
type ingestionRepoShim struct{}

func (ingestionRepoShim) CreateIngestionLog(ctx context.Context, db *gorm.DB, source, rawData string) (*domain.IngestionLog, error) {
	return repo.CreateIngestionLog(ctx, db, source, rawData)
}

func (ingestionRepoShim) CloseIngestionLog(ctx context.Context, db *gorm.DB, id string, status domain.IngestionStatus, businessID, errText string) error {
	return repo.CloseIngestionLog(ctx, db, id, status, businessID, errText)
}

func (ingestionRepoShim) FindCategoryByNameOrSlug(ctx context.Context, db *gorm.DB, name, slug string) (*domain.Category, error) {
	return repo.FindCategoryByNameOrSlug(ctx, db, name, slug)
}

func (ingestionRepoShim) CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return repo.CreateCategory(ctx, db, c)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Anonymous rate limiter (per IP; keyed callers are limited in the
//     admission service against the shared counter store)
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store cache.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per IP, for the keyless surfaces
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-User-ID", "X-User-Role", "If-None-Match"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "Retry-After", "ETag", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "Retry-After", "ETag", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health: the DB is required, the store is degraded-ok.
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "store": "ok"}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
			return
		}
		if store == nil || store.Ping(c.Request.Context()) != nil {
			status["store"] = "down"
		}
		c.JSON(http.StatusOK, status)
	})

	// Dependency injection: services ← repo/db/store
	authSvc := services.NewAuthService(db, keyRepoShim{}, store)
	authSvc.Window = cfg.RateWindow

	businessSvc := services.NewBusinessService(db, businessRepoShim{}, store)
	businessSvc.ListTTL = cfg.Cache.ListTTL
	businessSvc.DetailTTL = cfg.Cache.DetailTTL

	categorySvc := services.NewCategoryService(db, categoryRepoShim{})
	ingestSvc := services.NewIngestionService(db, ingestionRepoShim{}, businessSvc, cfg.IngestOwnerID)

	h := handlers.New(businessSvc, categorySvc, authSvc, ingestSvc)
	requireKey := middleware.RequireAPIKey(authSvc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Public directory browsing. Listings compress well.
		api.GET("/businesses", gzip.Gzip(gzip.DefaultCompression), h.ListBusinesses)
		api.GET("/businesses/:id", h.GetBusiness)
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:id", h.GetCategory)

		// Machine surface: API-key admitted.
		machine := api.Group("", requireKey)
		{
			machine.POST("/ingest", h.IngestBusiness)
			machine.GET("/businesses/:id/stats", h.GetBusinessStats)
		}

		// Dashboard surface: identity via external auth proxy headers.
		dashboard := api.Group("/dashboard")
		{
			dashboard.POST("/businesses", h.CreateBusiness)
			dashboard.PUT("/businesses/:id", h.UpdateBusiness)
			dashboard.DELETE("/businesses/:id", h.DeleteBusiness)

			dashboard.POST("/categories", h.CreateCategory)
			dashboard.PUT("/categories/:id", h.UpdateCategory)
			dashboard.DELETE("/categories/:id", h.DeleteCategory)

			dashboard.POST("/keys", h.CreateAPIKey)
			dashboard.GET("/keys", h.ListAPIKeys)
			dashboard.DELETE("/keys/:id", h.RevokeAPIKey)
		}
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
