package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/api/handlers"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

type stubPlaceLookup struct {
	suggestions []entities.PlaceCandidate
	resolved    *entities.PlaceCandidate
	err         error
	lookups     []string
}

func (s *stubPlaceLookup) Search(ctx context.Context, text string) ([]entities.PlaceCandidate, error) {
	s.lookups = append(s.lookups, text)
	if s.err != nil {
		return []entities.PlaceCandidate{}, s.err
	}
	return s.suggestions, nil
}

func (s *stubPlaceLookup) BestMatch(ctx context.Context, text string) (*entities.PlaceCandidate, error) {
	return s.resolved, s.err
}

func TestPlacesHandler_Suggest(t *testing.T) {
	lookup := &stubPlaceLookup{suggestions: []entities.PlaceCandidate{
		{DisplayName: "Paris, Île-de-France, France", Coordinates: entities.Coordinates{Latitude: 48.8566, Longitude: 2.3522}},
	}}
	handler := handlers.NewPlacesHandler(lookup)

	req := httptest.NewRequest(http.MethodGet, "/api/places/suggest?q=+Par+", nil)
	w := httptest.NewRecorder()
	handler.Suggest(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Par"}, lookup.lookups)

	var body struct {
		Query       string                    `json:"query"`
		Suggestions []entities.PlaceCandidate `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Par", body.Query)
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, 48.8566, body.Suggestions[0].Coordinates.Latitude)
}

func TestPlacesHandler_Resolve(t *testing.T) {
	lookup := &stubPlaceLookup{resolved: &entities.PlaceCandidate{DisplayName: "Lille, Hauts-de-France, France"}}
	handler := handlers.NewPlacesHandler(lookup)

	req := httptest.NewRequest(http.MethodGet, "/api/places/resolve?q=Lille", nil)
	w := httptest.NewRecorder()
	handler.Resolve(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var place entities.PlaceCandidate
	require.NoError(t, json.NewDecoder(w.Body).Decode(&place))
	assert.Equal(t, "Lille, Hauts-de-France, France", place.DisplayName)
}

func TestPlacesHandler_ResolveErrors(t *testing.T) {
	handler := handlers.NewPlacesHandler(&stubPlaceLookup{})

	req := httptest.NewRequest(http.MethodGet, "/api/places/resolve", nil)
	w := httptest.NewRecorder()
	handler.Resolve(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/places/resolve?q=Atlantide", nil)
	w = httptest.NewRecorder()
	handler.Resolve(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlacesHandler_SuggestGeocoderDown(t *testing.T) {
	handler := handlers.NewPlacesHandler(&stubPlaceLookup{err: errors.New("429 too many requests")})

	req := httptest.NewRequest(http.MethodGet, "/api/places/suggest?q=paris", nil)
	w := httptest.NewRecorder()
	handler.Suggest(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"query":"paris","suggestions":[]}`, w.Body.String())
}
