package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		ok       bool
	}{
		{"", CategoryAll, true},
		{"all", CategoryAll, true},
		{"ALL", CategoryAll, true},
		{"Photobooth", CategoryPhotobooth, true},
		{" photobooth ", CategoryPhotobooth, true},
		{"lumière", CategoryLighting, true},
		{"Trampoline", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCategory(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSortMode(t *testing.T) {
	assert.Equal(t, SortPriceAsc, ParseSortMode("price_asc"))
	assert.Equal(t, SortPriceDesc, ParseSortMode(" PRICE_DESC "))
	assert.Equal(t, SortRecent, ParseSortMode("recent"))
	assert.Equal(t, SortRecent, ParseSortMode("cheapest"))
}

func TestDefaultSearchCriteria(t *testing.T) {
	c := DefaultSearchCriteria()
	assert.Equal(t, CategoryAll, c.Category)
	assert.Equal(t, 10, c.RadiusKm)
	assert.Equal(t, SortRecent, c.Sort)
	assert.False(t, c.PhotoOnly)
	assert.Nil(t, c.Place)
	assert.False(t, c.HasPlace())
}

func TestSearchCriteria_PlaceLabel(t *testing.T) {
	c := DefaultSearchCriteria()
	c.Query = "  Lyon "
	assert.Equal(t, "Lyon", c.PlaceLabel())

	c.Place = &PlaceCandidate{DisplayName: "Lyon, Rhône, France", Coordinates: Coordinates{Latitude: 45.75, Longitude: 4.85}}
	assert.Equal(t, "Lyon, Rhône, France", c.PlaceLabel())
	assert.True(t, c.HasPlace())
}

func TestRecentSearchEntry_SameSearch(t *testing.T) {
	a := RecentSearchEntry{Query: "Paris", Category: CategorySound, RadiusKm: 10, Date: "2026-06-01"}
	b := RecentSearchEntry{Query: "Paris", Category: CategorySound, RadiusKm: 10, Date: "2026-07-14"}
	c := RecentSearchEntry{Query: "Paris", Category: CategorySound, RadiusKm: 20}

	assert.True(t, a.SameSearch(b))
	assert.False(t, a.SameSearch(c))
}

func TestListingDraft_IsEmpty(t *testing.T) {
	assert.True(t, ListingDraft{}.IsEmpty())
	assert.False(t, ListingDraft{Title: "Enceinte"}.IsEmpty())
}
