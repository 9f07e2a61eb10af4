package services

import (
	"sort"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/pkg/geo"
)

// ListingResult is a listing as displayed in results. DistanceKm is set only
// for listings that matched the radius filter.
type ListingResult struct {
	Listing    *entities.Listing `json:"listing"`
	DistanceKm *float64          `json:"distance_km,omitempty"`
}

// ApplyFilters narrows and orders listings for the given criteria.
// The input slice is never modified.
func ApplyFilters(listings []*entities.Listing, criteria entities.SearchCriteria) []*entities.Listing {
	results := ApplyFiltersWithDistance(listings, criteria)
	out := make([]*entities.Listing, len(results))
	for i, r := range results {
		out[i] = r.Listing
	}
	return out
}

// ApplyFiltersWithDistance runs category, geo, photo and sort in that order.
//
// The geo step only runs once a place with coordinates is selected. Listings
// without coordinates cannot be placed, so they are kept after the listings
// within the radius.
func ApplyFiltersWithDistance(listings []*entities.Listing, criteria entities.SearchCriteria) []ListingResult {
	results := make([]ListingResult, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		if !criteria.Category.IsAll() && l.Category != criteria.Category {
			continue
		}
		results = append(results, ListingResult{Listing: l})
	}

	if criteria.Place != nil {
		results = filterByRadius(results, criteria.Place.Coordinates.Point(), float64(criteria.RadiusKm))
	}

	if criteria.PhotoOnly {
		withPhoto := results[:0:0]
		for _, r := range results {
			if r.Listing.HasImage() {
				withPhoto = append(withPhoto, r)
			}
		}
		results = withPhoto
	}

	sortResults(results, criteria.Sort)
	return results
}

func filterByRadius(results []ListingResult, center geo.Point, radiusKm float64) []ListingResult {
	inRadius := make([]ListingResult, 0, len(results))
	var withoutCoords []ListingResult
	for _, r := range results {
		if !r.Listing.HasCoordinates() {
			withoutCoords = append(withoutCoords, r)
			continue
		}
		d := geo.DistanceKm(center, r.Listing.Location.Coordinates.Point())
		if d <= radiusKm {
			r.DistanceKm = &d
			inRadius = append(inRadius, r)
		}
	}
	return append(inRadius, withoutCoords...)
}

func sortResults(results []ListingResult, mode entities.SortMode) {
	switch mode {
	case entities.SortPriceAsc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Listing.PricePerDay < results[j].Listing.PricePerDay
		})
	case entities.SortPriceDesc:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Listing.PricePerDay > results[j].Listing.PricePerDay
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Listing.CreatedAt > results[j].Listing.CreatedAt
		})
	}
}
