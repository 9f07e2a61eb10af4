package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
)

// CachedPlaceProvider wraps a PlaceSearchProvider with a result cache.
// Failed lookups are never cached.
type CachedPlaceProvider struct {
	provider providers.PlaceSearchProvider
	cache    providers.CacheProvider
	ttl      time.Duration
	metrics  *observability.Metrics
}

// NewCachedPlaceProvider creates a caching decorator
func NewCachedPlaceProvider(provider providers.PlaceSearchProvider, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *CachedPlaceProvider {
	return &CachedPlaceProvider{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
	}
}

var _ providers.PlaceSearchProvider = (*CachedPlaceProvider)(nil)

// SearchPlaces returns cached candidates when available
func (c *CachedPlaceProvider) SearchPlaces(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
	key := placeCacheKey(query, limit)

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var candidates []entities.PlaceCandidate
		if err := json.Unmarshal(cached, &candidates); err == nil {
			observability.RecordCacheHit(ctx, c.metrics, "places")
			return candidates, nil
		}
		log.Debug().Err(err).Str("key", key).Msg("Discarding undecodable cached places")
	}
	observability.RecordCacheMiss(ctx, c.metrics, "places")

	candidates, err := c.provider.SearchPlaces(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(candidates); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Failed to cache places")
		}
	}
	return candidates, nil
}

func placeCacheKey(query string, limit int) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("places:v1:%d:%s", limit, hex.EncodeToString(sum[:]))
}
