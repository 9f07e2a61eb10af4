package entities

import "strings"

// SortMode selects the result ordering.
type SortMode string

const (
	SortRecent    SortMode = "recent"
	SortPriceAsc  SortMode = "price_asc"
	SortPriceDesc SortMode = "price_desc"
)

// ParseSortMode returns SortRecent for unknown input.
func ParseSortMode(value string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(value))) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	default:
		return SortRecent
	}
}

// DefaultRadiusKm is the radius a fresh search starts with.
const DefaultRadiusKm = 10

// SearchCriteria is the user's current query.
type SearchCriteria struct {
	Query     string          `json:"query"`
	Place     *PlaceCandidate `json:"place,omitempty"`
	Category  Category        `json:"category"`
	RadiusKm  int             `json:"radius_km"`
	Sort      SortMode        `json:"sort"`
	PhotoOnly bool            `json:"photo_only"`
	// Date is the event date picked in the refinement step. It is kept with
	// the search history but does not filter results.
	Date string `json:"date,omitempty"`
}

// DefaultSearchCriteria returns the criteria of a fresh search.
func DefaultSearchCriteria() SearchCriteria {
	return SearchCriteria{
		Category: CategoryAll,
		RadiusKm: DefaultRadiusKm,
		Sort:     SortRecent,
	}
}

// PlaceLabel is the place shown to the user: the selected place name or the free text.
func (c SearchCriteria) PlaceLabel() string {
	if c.Place != nil && c.Place.DisplayName != "" {
		return c.Place.DisplayName
	}
	return strings.TrimSpace(c.Query)
}

// HasPlace reports whether a place or a free-text location was entered.
func (c SearchCriteria) HasPlace() bool {
	return c.PlaceLabel() != ""
}
