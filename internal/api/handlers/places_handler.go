package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
)

type placeLookup interface {
	Search(ctx context.Context, text string) ([]entities.PlaceCandidate, error)
	BestMatch(ctx context.Context, text string) (*entities.PlaceCandidate, error)
}

// PlacesHandler exposes stateless place suggestions for clients that
// debounce on their own side.
type PlacesHandler struct {
	lookup placeLookup
}

// NewPlacesHandler creates a places handler
func NewPlacesHandler(lookup placeLookup) *PlacesHandler {
	return &PlacesHandler{lookup: lookup}
}

// Suggest handles GET /api/places/suggest?q=...
// Text shorter than two characters yields an empty list, as do lookup failures.
// Failed lookups are answered with no-store so caches retry them.
func (h *PlacesHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	suggestions, err := h.lookup.Search(r.Context(), q)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Debug().Err(err).Str("query", q).Msg("Place suggestions unavailable")
		markDegraded(w)
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"query":       q,
		"suggestions": suggestions,
	})
}

// Resolve handles GET /api/places/resolve?q=...
func (h *PlacesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondWithError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	place, err := h.lookup.BestMatch(r.Context(), q)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Debug().Err(err).Str("query", q).Msg("Place resolve unavailable")
		markDegraded(w)
	}
	if place == nil {
		respondWithError(w, http.StatusNotFound, "no place matches "+q)
		return
	}
	respondWithJSON(w, http.StatusOK, place)
}
