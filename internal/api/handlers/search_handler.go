package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/geo"
)

type listingCatalog interface {
	Load(ctx context.Context) []*entities.Listing
	Source() string
}

type placeResolver interface {
	BestMatch(ctx context.Context, text string) (*entities.PlaceCandidate, error)
}

// SearchHandler serves one-shot listing searches driven entirely by query parameters.
type SearchHandler struct {
	catalog  listingCatalog
	resolver placeResolver
	opts     services.SessionOptions
}

// SearchResponse is the body of GET /api/listings/search.
type SearchResponse struct {
	Results  []services.ListingResult `json:"results"`
	Count    int                      `json:"count"`
	Criteria entities.SearchCriteria  `json:"criteria"`
	Source   string                   `json:"source"`
}

// NewSearchHandler creates a search handler. resolver may be nil to disable text resolution.
func NewSearchHandler(catalog listingCatalog, resolver placeResolver, opts services.SessionOptions) *SearchHandler {
	return &SearchHandler{catalog: catalog, resolver: resolver, opts: opts}
}

// Search handles GET /api/listings/search.
//
// The place comes from explicit lat/lon when both are valid, otherwise the
// q (or place) text is resolved to its best match. Text that cannot be
// resolved leaves the geo filter off. Answers built on a failed geocoder call
// or an unavailable catalog are marked no-store.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	criteria := entities.DefaultSearchCriteria()
	criteria.RadiusKm = h.opts.ClampRadius(h.opts.DefaultRadiusKm)

	text := strings.TrimSpace(query.Get("q"))
	if text == "" {
		text = strings.TrimSpace(query.Get("place"))
	}
	criteria.Query = text

	categoryParam := query.Get("category")
	if categoryParam == "" {
		categoryParam = query.Get("categorie")
	}
	category, ok := entities.ParseCategory(categoryParam)
	if !ok {
		respondWithError(w, http.StatusUnprocessableEntity, "unknown category: "+categoryParam)
		return
	}
	criteria.Category = category

	if radiusParam := strings.TrimSpace(query.Get("radius")); radiusParam != "" {
		radius, err := strconv.Atoi(radiusParam)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid radius parameter")
			return
		}
		criteria.RadiusKm = h.opts.ClampRadius(radius)
	}

	criteria.Sort = entities.ParseSortMode(query.Get("sort"))
	criteria.PhotoOnly = parseFlag(query.Get("photo"))

	place, err := h.place(r.Context(), text, query.Get("lat"), query.Get("lon"))
	if errors.Is(err, errInvalidCoordinates) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		observability.LoggerFromContext(r.Context()).Debug().Err(err).Str("query", text).Msg("Place resolve unavailable, searching without geo filter")
		markDegraded(w)
	}
	criteria.Place = place

	listings := h.catalog.Load(r.Context())
	if h.catalog.Source() == services.SourceNone {
		markDegraded(w)
	}
	results := services.ApplyFiltersWithDistance(listings, criteria)
	respondWithJSON(w, http.StatusOK, SearchResponse{
		Results:  results,
		Count:    len(results),
		Criteria: criteria,
		Source:   h.catalog.Source(),
	})
}

func (h *SearchHandler) place(ctx context.Context, text, latParam, lonParam string) (*entities.PlaceCandidate, error) {
	latParam = strings.TrimSpace(latParam)
	lonParam = strings.TrimSpace(lonParam)
	if latParam != "" || lonParam != "" {
		lat, latErr := strconv.ParseFloat(latParam, 64)
		lon, lonErr := strconv.ParseFloat(lonParam, 64)
		if latErr != nil || lonErr != nil || !geo.Valid(geo.Point{Lat: lat, Lon: lon}) {
			return nil, errInvalidCoordinates
		}
		return &entities.PlaceCandidate{
			DisplayName: text,
			Coordinates: entities.Coordinates{Latitude: lat, Longitude: lon},
		}, nil
	}
	if text == "" || h.resolver == nil {
		return nil, nil
	}
	return h.resolver.BestMatch(ctx, text)
}

var errInvalidCoordinates = errors.New("lat and lon must both be valid coordinates")

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
