package entities

// PlaceCandidate is a geocoded place offered as a location suggestion.
type PlaceCandidate struct {
	DisplayName string      `json:"display_name"`
	Coordinates Coordinates `json:"coordinates"`
}
