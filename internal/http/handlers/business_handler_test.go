package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/services"
)

//
// Fakes
//

type fakeBusinessSvc struct {
	lastSpec services.BusinessQuerySpec
	page     *services.BusinessPage
	detail   *domain.Business
	created  *domain.Business
	err      error

	lastOwner string
	lastRole  domain.UserRole
	lastInput services.BusinessInput
}

func (f *fakeBusinessSvc) List(_ context.Context, spec services.BusinessQuerySpec) (*services.BusinessPage, error) {
	f.lastSpec = spec
	return f.page, f.err
}

func (f *fakeBusinessSvc) Detail(_ context.Context, id string) (*domain.Business, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeBusinessSvc) DetailBySlug(_ context.Context, slug string) (*domain.Business, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeBusinessSvc) Create(_ context.Context, ownerID string, role domain.UserRole, in services.BusinessInput) (*domain.Business, error) {
	f.lastOwner, f.lastRole, f.lastInput = ownerID, role, in
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeBusinessSvc) Update(_ context.Context, callerID string, role domain.UserRole, id string, in services.BusinessInput) (*domain.Business, error) {
	f.lastOwner, f.lastRole, f.lastInput = callerID, role, in
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeBusinessSvc) Delete(_ context.Context, callerID string, role domain.UserRole, id string) error {
	f.lastOwner, f.lastRole = callerID, role
	return f.err
}

func (f *fakeBusinessSvc) ViewsToday(context.Context, string) int64 { return 7 }

type fakeCategorySvc struct {
	items []domain.Category
	cat   *domain.Category
	err   error
	count int64
	maxTS *time.Time
}

func (f *fakeCategorySvc) Create(_ context.Context, in services.CategoryInput) (*domain.Category, error) {
	return f.cat, f.err
}
func (f *fakeCategorySvc) Get(_ context.Context, ref string) (*domain.Category, error) {
	return f.cat, f.err
}
func (f *fakeCategorySvc) List(_ context.Context, _ string, _, _ int, _ bool) ([]domain.Category, int64, error) {
	return f.items, int64(len(f.items)), f.err
}
func (f *fakeCategorySvc) Update(_ context.Context, id string, in services.CategoryInput) (*domain.Category, error) {
	return f.cat, f.err
}
func (f *fakeCategorySvc) Delete(_ context.Context, id string) error { return f.err }
func (f *fakeCategorySvc) Stats(context.Context) (int64, *time.Time, error) {
	return f.count, f.maxTS, nil
}

type fakeKeySvc struct {
	key    *domain.APIKey
	secret string
	keys   []domain.APIKey
	err    error
}

func (f *fakeKeySvc) CreateKey(_ context.Context, userID, name string, plan domain.Plan, expiresAt *time.Time) (*domain.APIKey, string, error) {
	return f.key, f.secret, f.err
}
func (f *fakeKeySvc) ListKeys(_ context.Context, userID string) ([]domain.APIKey, error) {
	return f.keys, f.err
}
func (f *fakeKeySvc) Revoke(_ context.Context, userID, keyID string) error { return f.err }

type fakeIngestSvc struct {
	created *domain.Business
	err     error
	lastSrc string
}

func (f *fakeIngestSvc) Ingest(_ context.Context, source string, feed services.FeedBusiness) (*domain.Business, error) {
	f.lastSrc = source
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/businesses", h.ListBusinesses)
	r.GET("/businesses/:id", h.GetBusiness)
	r.POST("/businesses", h.CreateBusiness)
	r.PUT("/businesses/:id", h.UpdateBusiness)
	r.DELETE("/businesses/:id", h.DeleteBusiness)
	return r
}

//
// Tests
//

func TestListBusinessesParsesQuery(t *testing.T) {
	svc := &fakeBusinessSvc{page: &services.BusinessPage{Items: []domain.Business{}, Page: 1, Limit: 20}}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/businesses?page=2&limit=50&search=bakery&status=active&latitude=4.05&longitude=9.76&radius=25&sort_by=distance&sort_order=asc&featured=true", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	spec := svc.lastSpec
	if spec.Page != 2 || spec.Limit != 50 || spec.Search != "bakery" {
		t.Fatalf("spec = %+v", spec)
	}
	if spec.Status != domain.StatusActive {
		t.Fatalf("Status = %q, want uppercased ACTIVE", spec.Status)
	}
	if spec.Geo == nil || spec.Geo.Latitude != 4.05 || spec.Geo.RadiusKm != 25 {
		t.Fatalf("Geo = %+v", spec.Geo)
	}
	if spec.SortBy != "distance" || spec.SortOrder != "asc" {
		t.Fatalf("sort = %q/%q", spec.SortBy, spec.SortOrder)
	}
	if spec.Featured == nil || !*spec.Featured {
		t.Fatalf("Featured = %v", spec.Featured)
	}
}

func TestListBusinessesIgnoresLoneCoordinate(t *testing.T) {
	svc := &fakeBusinessSvc{page: &services.BusinessPage{}}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/businesses?latitude=4.05", nil))

	if svc.lastSpec.Geo != nil {
		t.Fatalf("Geo = %+v, want nil when longitude missing", svc.lastSpec.Geo)
	}
}

func TestGetBusinessByIDAndSlug(t *testing.T) {
	b := &domain.Business{ID: "8f14e45f-ceea-4e67-8fb3-2a1c74fd8b31", Name: "Douala Bakery", Slug: "douala-bakery"}
	svc := &fakeBusinessSvc{detail: b}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	for _, ref := range []string{b.ID, "douala-bakery"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/businesses/"+ref, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s -> %d", ref, w.Code)
		}
	}
}

func TestGetBusinessNotFound(t *testing.T) {
	svc := &fakeBusinessSvc{err: services.ErrBusinessNotFound}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/businesses/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Code != ErrCodeNotFound {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestCreateBusinessRequiresIdentity(t *testing.T) {
	svc := &fakeBusinessSvc{created: &domain.Business{ID: "b-1"}}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	payload := []byte(`{"name":"Douala Bakery","category":"restaurants"}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/businesses", bytes.NewReader(payload)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without identity", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/businesses", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if svc.lastOwner != "user-1" || svc.lastRole != domain.RoleUser {
		t.Fatalf("owner/role = %q/%q", svc.lastOwner, svc.lastRole)
	}
}

func TestUpdateBusinessForbidden(t *testing.T) {
	svc := &fakeBusinessSvc{err: services.ErrNotOwner}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/businesses/b-1", bytes.NewReader([]byte(`{"phone":"123"}`)))
	req.Header.Set("X-User-ID", "intruder")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestDeleteBusinessNoContent(t *testing.T) {
	svc := &fakeBusinessSvc{}
	r := newTestRouter(New(svc, &fakeCategorySvc{}, &fakeKeySvc{}, &fakeIngestSvc{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/businesses/b-1", nil)
	req.Header.Set("X-User-ID", "user-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}
