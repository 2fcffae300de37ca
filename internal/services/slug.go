// URL slug generation for businesses and categories.
package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSeparatorRE = regexp.MustCompile(`[^a-z0-9]+`)

// slugFolder strips combining marks after NFD decomposition, so "Café
// Müller" folds to "cafe muller" before separator collapsing.
var slugFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a display name into a lowercase URL slug: diacritics
// folded, any run of non-alphanumerics collapsed to a single hyphen.
func Slugify(name string) string {
	folded, _, err := transform.String(slugFolder, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(folded)
	s = slugSeparatorRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// uniqueSlug returns the first available slug derived from name, probing
// "-2", "-3", ... suffixes against exists. excludeID lets updates keep
// their current slug.
func uniqueSlug(ctx context.Context, name, excludeID string, exists func(ctx context.Context, slug, excludeID string) (bool, error)) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "untitled"
	}
	slug := base
	for i := 2; ; i++ {
		taken, err := exists(ctx, slug, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}
