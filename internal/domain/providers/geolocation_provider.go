package providers

import (
	"context"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

// PlaceSearchProvider is an external text geocoder.
type PlaceSearchProvider interface {
	// SearchPlaces returns up to limit ranked candidates for a free-text query.
	SearchPlaces(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error)
}
