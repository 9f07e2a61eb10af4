package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/adapters/cache"
	"github.com/delivevent/marketplace/backend/internal/adapters/database"
	"github.com/delivevent/marketplace/backend/internal/adapters/events"
	"github.com/delivevent/marketplace/backend/internal/adapters/providers/geolocation"
	"github.com/delivevent/marketplace/backend/internal/adapters/search"
	"github.com/delivevent/marketplace/backend/internal/adapters/static"
	"github.com/delivevent/marketplace/backend/internal/adapters/storage"
	"github.com/delivevent/marketplace/backend/internal/api/handlers"
	"github.com/delivevent/marketplace/backend/internal/api/middleware"
	"github.com/delivevent/marketplace/backend/internal/api/routes"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/postgres"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/redis"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/sqlite"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/typesense"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env, cfg.Log)

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Redis backs the HTTP and place caches, and optionally the history store.
	// The service runs without it.
	var cacheProvider providers.CacheProvider
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient, cfg.Geolocation.CacheTTL)
	}

	primary, primaryName, closePrimary := openCatalogSource(ctx, cfg)
	defer closePrimary()
	fallback := static.NewDataset(cfg.Catalog.FallbackFile, cfg.Catalog.FallbackURL, nil)
	catalog := services.NewListingCatalog(primary, primaryName, fallback, cfg.Catalog.Limit, metrics)
	log.Info().Str("primary", primaryName).Str("fallback", fallback.Origin()).Msg("Listing catalog configured")

	backend, closeBackend := openHistoryBackend(ctx, cfg, redisClient)
	defer closeBackend()
	stores := func(sessionID string) providers.KeyValueStore {
		return storage.NewNamespacedStore(backend, cfg.Storage.KeyPrefix+sessionID+":")
	}

	lookup := services.NewPlaceLookup(placeProvider(cfg, cacheProvider, metrics), cfg.Geolocation.Debounce, cfg.Geolocation.ResultLimit)
	defer lookup.Close()

	opts := services.SessionOptions{
		GatedWizard:     cfg.Search.GatedWizard,
		DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
		MinRadiusKm:     cfg.Search.MinRadiusKm,
		MaxRadiusKm:     cfg.Search.MaxRadiusKm,
	}
	registry := services.NewSessionRegistry(lookup, catalog, stores, opts, cfg.Search.SessionIdleTTL)
	defer registry.Close()
	go registry.Run(ctx, time.Minute)

	// Warm the catalog so the first search does not pay for the load.
	go catalog.Load(ctx)

	// Reload listings when the indexer reports a rebuilt index.
	if redisClient != nil {
		bus := events.NewRedisEventBus(redisClient)
		defer bus.Close()
		go func() {
			if err := services.RefreshOnEvents(ctx, bus, catalog); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("Catalog refresh listener stopped")
			}
		}()
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(
		handlers.NewSearchHandler(catalog, lookup, opts),
		handlers.NewPlacesHandler(lookup),
		handlers.NewSessionHandler(registry),
		cacheMiddleware,
		metrics,
	).WithAllowedOrigins(cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}
	log.Info().Msg("Server stopped")
}

// openCatalogSource connects the configured primary listing source. A source
// that cannot be reached is skipped and the static dataset serves alone.
func openCatalogSource(ctx context.Context, cfg *config.Config) (repositories.ListingSource, string, func()) {
	noop := func() {}

	switch strings.ToLower(cfg.Catalog.Source) {
	case "postgres":
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable, serving the static catalog")
			return nil, "", noop
		}
		return database.NewListingAdapter(pgClient), "postgres", func() { _ = pgClient.Close() }
	case "typesense":
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, serving the static catalog")
			return nil, "", noop
		}
		adapter := search.NewTypesenseListingAdapter(tsClient)
		if err := adapter.InitSchema(ctx, false); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema")
		}
		return adapter, "typesense", noop
	default:
		return nil, "", noop
	}
}

// openHistoryBackend returns the shared store that per-session namespaces live in.
func openHistoryBackend(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (providers.KeyValueStore, func()) {
	noop := func() {}

	switch strings.ToLower(cfg.Storage.Backend) {
	case "sqlite":
		client, err := sqlite.NewClient(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Storage.SQLitePath).Msg("SQLite unavailable, keeping history in memory")
			break
		}
		store, err := storage.NewSQLiteStore(ctx, client)
		if err != nil {
			_ = client.Close()
			log.Warn().Err(err).Msg("Failed to prepare SQLite history store, keeping history in memory")
			break
		}
		return store, func() { _ = client.Close() }
	case "redis":
		if redisClient == nil {
			log.Warn().Msg("Redis history store requested but Redis is unavailable, keeping history in memory")
			break
		}
		return storage.NewRedisStore(redisClient, cfg.Storage.HistoryTTL), noop
	}
	return storage.NewMemoryStore(), noop
}

func placeProvider(cfg *config.Config, cacheProvider providers.CacheProvider, metrics *observability.Metrics) providers.PlaceSearchProvider {
	var provider providers.PlaceSearchProvider
	switch strings.ToLower(cfg.Geolocation.Provider) {
	case "mock":
		provider = geolocation.NewMockPlaceProvider()
	default:
		provider = geolocation.NewNominatimProvider(cfg.Geolocation, &http.Client{Timeout: cfg.Geolocation.Timeout}, metrics)
	}

	if cacheProvider != nil && cfg.Geolocation.CacheTTL > 0 {
		return geolocation.NewCachedPlaceProvider(provider, cacheProvider, cfg.Geolocation.CacheTTL, metrics)
	}
	return provider
}
