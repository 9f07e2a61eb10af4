package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

// RefreshOnEvents reloads catalog whenever a catalog event arrives on bus.
// It blocks until ctx is done or the subscription ends.
func RefreshOnEvents(ctx context.Context, bus providers.EventBus, catalog *ListingCatalog) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			listings := catalog.Refresh(ctx)
			log.Info().
				Str("event", string(event.Type)).
				Str("event_source", event.Source).
				Int("listings", len(listings)).
				Str("catalog_source", catalog.Source()).
				Msg("Catalog refreshed")
		}
	}
}
