package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/adapters/database"
	"github.com/delivevent/marketplace/backend/internal/adapters/events"
	"github.com/delivevent/marketplace/backend/internal/adapters/search"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/postgres"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/redis"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/typesense"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Server.Env, cfg.Log)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset || os.Getenv("RESET_TYPESENSE") == "true"); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		return err
	}

	index := search.NewTypesenseListingAdapter(tsClient)
	if err := index.InitSchema(ctx, reset); err != nil {
		return err
	}

	indexed, skipped, err := indexListings(ctx, database.NewListingAdapter(pgClient), index)
	if err != nil {
		return err
	}
	log.Info().Int("indexed", indexed).Int("skipped", skipped).Str("collection", tsClient.Collection()).Msg("Listings indexed")

	notifyReindexed(ctx, cfg, indexed)
	return nil
}

// notifyReindexed tells running API instances to reload their catalog. Redis is optional.
func notifyReindexed(ctx context.Context, cfg *config.Config, count int) {
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, skipping catalog notification")
		return
	}
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	defer bus.Close()
	if err := bus.Publish(ctx, providers.EventChannelCatalogUpdates, newReindexedEvent(count)); err != nil {
		log.Warn().Err(err).Msg("Failed to publish catalog notification")
	}
}

func newReindexedEvent(count int) *entities.CatalogEvent {
	return &entities.CatalogEvent{
		ID:        uuid.New().String(),
		Type:      entities.CatalogEventReindexed,
		Source:    "typesense",
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// indexListings copies every source row into the index, normalized the same
// way the search service reads them. Rows that fail to index are counted and skipped.
func indexListings(ctx context.Context, source repositories.ListingSource, index repositories.ListingIndex) (int, int, error) {
	records, err := source.ListListings(ctx, 0)
	if err != nil {
		return 0, 0, err
	}

	indexed, skipped := 0, 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return indexed, skipped, err
		}
		listing := services.NormalizeListing(record, "")
		if listing == nil || listing.ID == "" {
			skipped++
			continue
		}
		if err := index.Index(ctx, listing); err != nil {
			log.Warn().Err(err).Str("listing_id", listing.ID).Msg("Failed to index listing")
			skipped++
			continue
		}
		indexed++
	}
	return indexed, skipped, nil
}
