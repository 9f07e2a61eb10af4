package geolocation

import (
	"context"
	"strings"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

// MockPlaceProvider answers from a fixed list of French cities. Used for local runs without network.
type MockPlaceProvider struct {
	places []entities.PlaceCandidate
}

// NewMockPlaceProvider creates a mock provider
func NewMockPlaceProvider() *MockPlaceProvider {
	return &MockPlaceProvider{places: []entities.PlaceCandidate{
		{DisplayName: "Paris, Île-de-France, France", Coordinates: entities.Coordinates{Latitude: 48.8566, Longitude: 2.3522}},
		{DisplayName: "Lyon, Auvergne-Rhône-Alpes, France", Coordinates: entities.Coordinates{Latitude: 45.7640, Longitude: 4.8357}},
		{DisplayName: "Marseille, Provence-Alpes-Côte d'Azur, France", Coordinates: entities.Coordinates{Latitude: 43.2965, Longitude: 5.3698}},
		{DisplayName: "Bordeaux, Nouvelle-Aquitaine, France", Coordinates: entities.Coordinates{Latitude: 44.8378, Longitude: -0.5792}},
		{DisplayName: "Lille, Hauts-de-France, France", Coordinates: entities.Coordinates{Latitude: 50.6292, Longitude: 3.0573}},
		{DisplayName: "Nantes, Pays de la Loire, France", Coordinates: entities.Coordinates{Latitude: 47.2184, Longitude: -1.5536}},
		{DisplayName: "Toulouse, Occitanie, France", Coordinates: entities.Coordinates{Latitude: 43.6047, Longitude: 1.4442}},
		{DisplayName: "Strasbourg, Grand Est, France", Coordinates: entities.Coordinates{Latitude: 48.5734, Longitude: 7.7521}},
	}}
}

var _ providers.PlaceSearchProvider = (*MockPlaceProvider)(nil)

// SearchPlaces returns cities whose name contains the query, case-insensitively
func (m *MockPlaceProvider) SearchPlaces(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []entities.PlaceCandidate
	for _, p := range m.places {
		if strings.Contains(strings.ToLower(p.DisplayName), needle) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
