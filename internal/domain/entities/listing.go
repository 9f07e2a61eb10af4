package entities

import "github.com/delivevent/marketplace/backend/pkg/geo"

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Point converts the coordinates for distance computations.
func (c Coordinates) Point() geo.Point {
	return geo.Point{Lat: c.Latitude, Lon: c.Longitude}
}

// Location is where a listing's equipment is picked up.
// A nil Coordinates means the listing has no usable position.
type Location struct {
	Name        string       `json:"name"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Listing is a rental offer as seen by the search engine.
type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    Category `json:"category"`
	PricePerDay float64  `json:"price_per_day"`
	Location    Location `json:"location"`
	ImageURL    string   `json:"image_url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// CreatedAt is an ISO-8601 timestamp; string order is recency order.
	CreatedAt string `json:"created_at,omitempty"`
}

// HasCoordinates reports whether the listing can take part in the geo filter.
func (l *Listing) HasCoordinates() bool {
	return l.Location.Coordinates != nil
}

// HasImage reports whether the listing carries an image reference.
func (l *Listing) HasImage() bool {
	return l.ImageURL != ""
}

// ListingRecord is a raw row from a listing source before normalization.
// Field names and value types vary between sources.
type ListingRecord map[string]any
