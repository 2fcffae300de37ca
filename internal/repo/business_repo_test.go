package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/domain"
	"github.com/romapi/go-directory-backend/internal/geo"
)

func f64(v float64) *float64 { return &v }

func seedBusiness(t *testing.T, db *gorm.DB, b domain.Business) *domain.Business {
	t.Helper()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Slug == "" {
		b.Slug = b.ID
	}
	if b.Status == "" {
		b.Status = domain.StatusActive
	}
	if b.Plan == "" {
		b.Plan = domain.PlanFree
	}
	if err := CreateBusiness(context.Background(), db, &b); err != nil {
		t.Fatalf("seed business %q: %v", b.Name, err)
	}
	return &b
}

func TestListBusinessesFilterTranslation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, domain.RoleUser)
	food := seedCategory(t, db, "Restaurants", "restaurants")
	tech := seedCategory(t, db, "IT Services", "it-services")

	seedBusiness(t, db, domain.Business{Name: "Saveur Grill", Description: "wood-fired chicken", City: "Douala", Region: "Littoral", CategoryID: food.ID, OwnerID: owner.ID, Featured: true})
	seedBusiness(t, db, domain.Business{Name: "Littoral Hosting", City: "Douala", Region: "Littoral", CategoryID: tech.ID, OwnerID: owner.ID})
	seedBusiness(t, db, domain.Business{Name: "Capital Bytes", City: "Yaounde", Region: "Centre", CategoryID: tech.ID, OwnerID: owner.ID, Status: domain.StatusPending})

	cases := []struct {
		name   string
		filter BusinessFilter
		want   int
	}{
		{"no filter", BusinessFilter{Limit: 10}, 3},
		{"category by id", BusinessFilter{Category: tech.ID, Limit: 10}, 2},
		{"category by slug", BusinessFilter{Category: "restaurants", Limit: 10}, 1},
		{"city substring, case-insensitive", BusinessFilter{City: "doua", Limit: 10}, 2},
		{"region", BusinessFilter{Region: "centre", Limit: 10}, 1},
		{"search hits description", BusinessFilter{Search: "CHICKEN", Limit: 10}, 1},
		{"status", BusinessFilter{Status: domain.StatusPending, Limit: 10}, 1},
		{"featured", BusinessFilter{Featured: boolPtr(true), Limit: 10}, 1},
		{"no match", BusinessFilter{Search: "nonexistent", Limit: 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := ListBusinesses(ctx, db, tc.filter)
			if err != nil {
				t.Fatalf("ListBusinesses: %v", err)
			}
			if len(items) != tc.want {
				t.Fatalf("got %d items, want %d", len(items), tc.want)
			}
			total, err := CountBusinesses(ctx, db, tc.filter)
			if err != nil {
				t.Fatalf("CountBusinesses: %v", err)
			}
			if int(total) != tc.want {
				t.Fatalf("count = %d, want %d", total, tc.want)
			}
		})
	}
}

func boolPtr(v bool) *bool { return &v }

func TestListBusinessesPreloadsCategory(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, domain.RoleUser)
	cat := seedCategory(t, db, "Hotels", "hotels")
	seedBusiness(t, db, domain.Business{Name: "Mont Febe", City: "Yaounde", CategoryID: cat.ID, OwnerID: owner.ID})

	items, err := ListBusinesses(context.Background(), db, BusinessFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListBusinesses: %v", err)
	}
	if len(items) != 1 || items[0].Category.Slug != "hotels" {
		t.Fatalf("category not preloaded: %+v", items)
	}
}

func TestBoundingBoxExcludesOutsideAndUnlocated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, domain.RoleUser)
	cat := seedCategory(t, db, "Shops", "shops")

	in := seedBusiness(t, db, domain.Business{Name: "Inside", CategoryID: cat.ID, OwnerID: owner.ID, Latitude: f64(4.05), Longitude: f64(9.70)})
	seedBusiness(t, db, domain.Business{Name: "Outside", CategoryID: cat.ID, OwnerID: owner.ID, Latitude: f64(6.50), Longitude: f64(12.00)})
	seedBusiness(t, db, domain.Business{Name: "Unlocated", CategoryID: cat.ID, OwnerID: owner.ID})

	box := geo.BoundingBox(4.05, 9.70, 25)
	items, err := ListBusinesses(ctx, db, BusinessFilter{Box: &box, Limit: 10})
	if err != nil {
		t.Fatalf("ListBusinesses: %v", err)
	}
	if len(items) != 1 || items[0].ID != in.ID {
		t.Fatalf("box filter returned %d items, want only %q", len(items), in.Name)
	}
}

func TestOrderClause(t *testing.T) {
	cases := []struct {
		filter BusinessFilter
		want   string
	}{
		{BusinessFilter{}, "created_at asc"},
		{BusinessFilter{SortDesc: true}, "created_at desc"},
		{BusinessFilter{SortField: "name"}, "name asc"},
		{BusinessFilter{SortField: "view_count", SortDesc: true}, "view_count desc"},
		{BusinessFilter{SortField: "featured", SortDesc: true}, "featured desc"},
		{BusinessFilter{SortField: "drop table"}, "created_at asc"}, // unknown fields fall back
	}
	for _, tc := range cases {
		if got := orderClause(tc.filter); got != tc.want {
			t.Fatalf("orderClause(%+v) = %q, want %q", tc.filter, got, tc.want)
		}
	}
}

func TestSlugExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, domain.RoleUser)
	cat := seedCategory(t, db, "Shops", "shops")
	b := seedBusiness(t, db, domain.Business{Name: "Shop", Slug: "shop", CategoryID: cat.ID, OwnerID: owner.ID})

	taken, err := SlugExists(ctx, db, "shop", "")
	if err != nil || !taken {
		t.Fatalf("SlugExists(shop) = %v, %v; want true", taken, err)
	}
	taken, err = SlugExists(ctx, db, "shop", b.ID)
	if err != nil || taken {
		t.Fatalf("SlugExists excluding owner row = %v, %v; want false", taken, err)
	}
	taken, err = SlugExists(ctx, db, "free-slug", "")
	if err != nil || taken {
		t.Fatalf("SlugExists(free-slug) = %v, %v; want false", taken, err)
	}
}

func TestIncrementBusinessViews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, domain.RoleUser)
	cat := seedCategory(t, db, "Shops", "shops")
	b := seedBusiness(t, db, domain.Business{Name: "Shop", CategoryID: cat.ID, OwnerID: owner.ID})

	for i := 0; i < 3; i++ {
		if err := IncrementBusinessViews(ctx, db, b.ID); err != nil {
			t.Fatalf("IncrementBusinessViews: %v", err)
		}
	}
	got, err := FindBusinessByID(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("FindBusinessByID: %v", err)
	}
	if got.ViewCount != 3 {
		t.Fatalf("ViewCount = %d, want 3", got.ViewCount)
	}
}

func TestDeleteBusiness(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, domain.RoleUser)
	cat := seedCategory(t, db, "Shops", "shops")
	b := seedBusiness(t, db, domain.Business{Name: "Shop", CategoryID: cat.ID, OwnerID: owner.ID})

	if err := DeleteBusiness(ctx, db, b.ID); err != nil {
		t.Fatalf("DeleteBusiness: %v", err)
	}
	if _, err := FindBusinessByID(ctx, db, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted row still visible, err = %v", err)
	}
	if err := DeleteBusiness(ctx, db, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}
