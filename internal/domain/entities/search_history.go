package entities

import "time"

// RecentSearchEntry is one submitted search remembered for replay.
type RecentSearchEntry struct {
	ID       string    `json:"id,omitempty"`
	Query    string    `json:"q"`
	Category Category  `json:"cat,omitempty"`
	Date     string    `json:"date,omitempty"`
	RadiusKm int       `json:"radius,omitempty"`
	At       time.Time `json:"at"`
}

// SameSearch reports whether two entries describe the same search.
func (e RecentSearchEntry) SameSearch(other RecentSearchEntry) bool {
	return e.Query == other.Query && e.Category == other.Category && e.RadiusKm == other.RadiusKm
}

// ListingDraft is an in-progress listing form autosaved between visits.
type ListingDraft struct {
	Title       string `json:"title,omitempty"`
	Category    string `json:"cat,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"desc,omitempty"`
	Location    string `json:"location,omitempty"`
	Phone       string `json:"phone,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// IsEmpty reports whether no field of the draft has been filled.
func (d ListingDraft) IsEmpty() bool {
	return d == ListingDraft{}
}

// LastUsedDefaults prefill the listing form when no draft is pending.
type LastUsedDefaults struct {
	Category     string `json:"category,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
}
