package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/config"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultHTTPTimeout  = 8 * time.Second
	maxResultLimit      = 50
)

// NominatimProvider implements PlaceSearchProvider against an OpenStreetMap Nominatim instance.
type NominatimProvider struct {
	baseURL    string
	email      string
	userAgent  string
	language   string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewNominatimProvider creates a provider from configuration. httpClient may be nil.
func NewNominatimProvider(cfg config.GeolocationConfig, httpClient *http.Client, metrics *observability.Metrics) *NominatimProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &NominatimProvider{
		baseURL:    baseURL,
		email:      cfg.ContactEmail,
		userAgent:  cfg.UserAgent,
		language:   cfg.Language,
		httpClient: httpClient,
		metrics:    metrics,
	}
}

var _ providers.PlaceSearchProvider = (*NominatimProvider)(nil)

// SearchPlaces issues one text search. Rows with unparsable coordinates are skipped.
func (p *NominatimProvider) SearchPlaces(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("query is required")
	}
	if limit <= 0 || limit > maxResultLimit {
		limit = maxResultLimit
	}

	ctx, span := observability.StartSpan(ctx, "nominatim.search")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.Int("geocoder.limit", limit))

	rows, err := p.doSearch(ctx, trimmed, limit)
	observability.RecordPlaceLookup(ctx, p.metrics, "nominatim", err != nil)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	candidates := make([]entities.PlaceCandidate, 0, len(rows))
	for _, row := range rows {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row.Lat), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row.Lon), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		candidates = append(candidates, entities.PlaceCandidate{
			DisplayName: row.DisplayName,
			Coordinates: entities.Coordinates{Latitude: lat, Longitude: lon},
		})
		if len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

func (p *NominatimProvider) doSearch(ctx context.Context, query string, limit int) ([]nominatimPlace, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	if p.email != "" {
		params.Set("email", p.email)
	}

	reqURL := fmt.Sprintf("%s/search?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geocoder request", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.language != "" {
		req.Header.Set("Accept-Language", p.language)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("geocoder request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("geocoder returned status %d", resp.StatusCode), nil)
	}

	var payload []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode geocoder response", err)
	}
	return payload, nil
}

type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}
