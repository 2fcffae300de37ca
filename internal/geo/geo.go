// Package geo provides great-circle distance math for the directory's
// location-aware queries. All functions are pure: no I/O, no state, and
// identical inputs always yield identical outputs, which keeps cached
// listing pages reproducible.
package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// points given in decimal degrees, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Box is a latitude/longitude bounding rectangle. It is a cheap pre-filter:
// every point within Radius km of the origin lies inside the box, but the
// box also admits corner points slightly beyond the radius. Exact ranking
// happens afterwards with Distance.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox computes the box enclosing a circle of radiusKm around the
// origin. One degree of latitude spans ~111 km everywhere; one degree of
// longitude spans 111·cos(lat) km, so the longitude span widens toward the
// poles.
func BoundingBox(lat, lon, radiusKm float64) Box {
	latRange := radiusKm / 111.0
	cos := math.Cos(radians(lat))
	if cos < 1e-9 {
		cos = 1e-9
	}
	lonRange := radiusKm / (111.0 * cos)
	return Box{
		MinLat: lat - latRange,
		MaxLat: lat + latRange,
		MinLon: lon - lonRange,
		MaxLon: lon + lonRange,
	}
}

// Ranked is the minimal view of a candidate the distance sort needs.
// Distance is nil for candidates without stored coordinates.
type Ranked interface {
	DistanceKm() *float64
}

// SortByDistance orders items by their computed distance. Ascending puts
// nil-distance items last; descending puts them after all valid distances.
// The sort is stable, so ties and nil runs keep their input order.
func SortByDistance(items []Ranked, ascending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].DistanceKm(), items[j].DistanceKm()
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false // nil sorts after valid in either direction
		case dj == nil:
			return true
		case ascending:
			return *di < *dj
		default:
			return *di > *dj
		}
	})
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
