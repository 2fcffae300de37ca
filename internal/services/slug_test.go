package services

import (
	"context"
	"errors"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Saveur Grill", "saveur-grill"},
		{"Café Müller", "cafe-muller"},
		{"  --Weird__Name!!  ", "weird-name"},
		{"Restaurants & Bars", "restaurants-bars"},
		{"ALLCAPS", "allcaps"},
		{"日本", ""}, // non-latin input collapses away
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUniqueSlugProbesSuffixes(t *testing.T) {
	taken := map[string]bool{"shop": true, "shop-2": true}
	exists := func(_ context.Context, slug, _ string) (bool, error) {
		return taken[slug], nil
	}

	got, err := uniqueSlug(context.Background(), "Shop", "", exists)
	if err != nil {
		t.Fatalf("uniqueSlug: %v", err)
	}
	if got != "shop-3" {
		t.Fatalf("slug = %q, want shop-3", got)
	}
}

func TestUniqueSlugEmptyNameAndError(t *testing.T) {
	free := func(context.Context, string, string) (bool, error) { return false, nil }
	got, err := uniqueSlug(context.Background(), "!!!", "", free)
	if err != nil || got != "untitled" {
		t.Fatalf("blank name slug = %q, %v", got, err)
	}

	boom := errors.New("db down")
	failing := func(context.Context, string, string) (bool, error) { return false, boom }
	if _, err := uniqueSlug(context.Background(), "Shop", "", failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want propagation", err)
	}
}
