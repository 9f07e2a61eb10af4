package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/geo"
)

const (
	DefaultCatalogLimit = 50
	SourceNone          = "none"
	SourceFallback      = "static"
)

// ListingCatalog loads the listing set once and serves it from memory.
//
// The primary source is tried first. On error, a nil primary or an empty
// result the fallback dataset is used instead. Load never fails: when both
// sources fail it returns an empty set and the next call tries again.
type ListingCatalog struct {
	primary     repositories.ListingSource
	primaryName string
	fallback    repositories.ListingSource
	limit       int
	metrics     *observability.Metrics
	now         func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	listings []*entities.Listing
	source   string
}

// NewListingCatalog creates a catalog. primary, fallback and metrics may each be nil.
func NewListingCatalog(primary repositories.ListingSource, primaryName string, fallback repositories.ListingSource, limit int, metrics *observability.Metrics) *ListingCatalog {
	if limit <= 0 {
		limit = DefaultCatalogLimit
	}
	return &ListingCatalog{
		primary:     primary,
		primaryName: primaryName,
		fallback:    fallback,
		limit:       limit,
		metrics:     metrics,
		now:         time.Now,
		source:      SourceNone,
	}
}

// Load returns the cached listings, loading them on first use.
// Concurrent first calls share a single load.
func (c *ListingCatalog) Load(ctx context.Context) []*entities.Listing {
	c.mu.RLock()
	if c.loaded {
		listings := c.listings
		c.mu.RUnlock()
		return listings
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do("catalog", func() (interface{}, error) {
		c.mu.RLock()
		if c.loaded {
			listings := c.listings
			c.mu.RUnlock()
			return listings, nil
		}
		c.mu.RUnlock()

		listings, source := c.load(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		c.source = source
		if source != SourceNone {
			c.loaded = true
			c.listings = listings
		}
		return listings, nil
	})
	return v.([]*entities.Listing)
}

// Refresh drops the cached set and loads again.
func (c *ListingCatalog) Refresh(ctx context.Context) []*entities.Listing {
	c.mu.Lock()
	c.loaded = false
	c.listings = nil
	c.mu.Unlock()
	return c.Load(ctx)
}

// Source names the source that served the cached set.
func (c *ListingCatalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

func (c *ListingCatalog) load(ctx context.Context) ([]*entities.Listing, string) {
	ctx, span := observability.StartSpan(ctx, "catalog.load")
	defer span.End()
	start := time.Now()

	if c.primary != nil {
		records, err := c.primary.ListListings(ctx, c.limit)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("source", c.primaryName).Msg("Primary listing source failed, using fallback")
		case len(records) == 0:
			log.Info().Str("source", c.primaryName).Msg("Primary listing source is empty, using fallback")
		default:
			listings := normalizeAll(records, "")
			observability.SetSpanAttributes(span, attribute.String("catalog.source", c.primaryName), attribute.Int("catalog.count", len(listings)))
			observability.RecordCatalogLoad(ctx, c.metrics, c.primaryName, len(listings), time.Since(start))
			return listings, c.primaryName
		}
	}

	if c.fallback != nil {
		records, err := c.fallback.ListListings(ctx, 0)
		if err == nil {
			listings := normalizeAll(records, c.now().UTC().Format(time.RFC3339))
			observability.SetSpanAttributes(span, attribute.String("catalog.source", SourceFallback), attribute.Int("catalog.count", len(listings)))
			observability.RecordCatalogLoad(ctx, c.metrics, SourceFallback, len(listings), time.Since(start))
			return listings, SourceFallback
		}
		observability.RecordError(span, err)
		log.Warn().Err(err).Msg("Fallback listing source failed")
	}

	return []*entities.Listing{}, SourceNone
}

func normalizeAll(records []entities.ListingRecord, defaultCreatedAt string) []*entities.Listing {
	listings := make([]*entities.Listing, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		listings = append(listings, NormalizeListing(record, defaultCreatedAt))
	}
	return listings
}

// NormalizeListing maps a raw row in either camelCase or snake_case form to a Listing.
// Unparsable prices become 0 and unusable coordinates become nil.
// defaultCreatedAt is used when the record has no creation timestamp.
func NormalizeListing(record entities.ListingRecord, defaultCreatedAt string) *entities.Listing {
	listing := &entities.Listing{
		ID:          asString(record["id"]),
		Title:       asString(record["title"]),
		Category:    entities.Category(asString(record["category"])),
		PricePerDay: asFloat(firstPresent(record, "pricePerDay", "price_per_day", "price")),
		ImageURL:    asString(firstPresent(record, "image", "image_url", "imageUrl")),
		Tags:        asStrings(record["tags"]),
		CreatedAt:   asString(firstPresent(record, "createdAt", "created_at")),
	}

	var lat, lon interface{}
	if nested, ok := record["location"].(map[string]interface{}); ok {
		listing.Location.Name = asString(nested["name"])
		lat, lon = nested["lat"], nested["lon"]
	} else {
		listing.Location.Name = asString(firstPresent(record, "location_name", "locationName"))
		lat = firstPresent(record, "location_lat", "locationLat")
		lon = firstPresent(record, "location_lon", "locationLon")
	}
	if latV, ok := toFloat(lat); ok {
		if lonV, ok := toFloat(lon); ok && geo.Valid(geo.Point{Lat: latV, Lon: lonV}) {
			listing.Location.Coordinates = &entities.Coordinates{Latitude: latV, Longitude: lonV}
		}
	}

	if listing.CreatedAt == "" {
		listing.CreatedAt = defaultCreatedAt
	}
	return listing
}

func firstPresent(record entities.ListingRecord, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asFloat(v interface{}) float64 {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return f
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil
		}
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
