package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/adapters/database"
	"github.com/delivevent/marketplace/backend/internal/adapters/static"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/postgres"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
	"github.com/delivevent/marketplace/backend/pkg/config"
)

// Seeds the listings table from the static dataset so the postgres catalog
// source and the indexer have rows to work with.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Server.Env, cfg.Log)

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	listings := database.NewListingAdapter(pgClient)
	if err := listings.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare listings table")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating listings before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE listings`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset listings")
		}
	}

	dataset := static.NewDataset(cfg.Catalog.FallbackFile, cfg.Catalog.FallbackURL, nil)
	records, err := dataset.ListListings(ctx, 0)
	if err != nil {
		log.Fatal().Err(err).Str("origin", dataset.Origin()).Msg("Failed to read dataset")
	}

	seeded := 0
	for _, record := range records {
		listing := services.NormalizeListing(record, "")
		if listing == nil || listing.ID == "" {
			continue
		}
		if err := listings.Upsert(ctx, listing); err != nil {
			log.Error().Err(err).Str("listing_id", listing.ID).Msg("Failed to seed listing")
			continue
		}
		seeded++
	}

	log.Info().Int("seeded", seeded).Int("total", len(records)).Str("origin", dataset.Origin()).Msg("Seeding completed")
}
