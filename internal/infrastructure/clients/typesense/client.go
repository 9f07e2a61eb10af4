package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/delivevent/marketplace/backend/pkg/config"
	"github.com/delivevent/marketplace/backend/pkg/retry"
)

// Client represents a Typesense client bound to the listings collection
type Client struct {
	client     *typesense.Client
	collection string
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.Do(ctx, retry.DefaultConfig(), "Typesense", func(ctx context.Context) error {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ok, err := client.Health(healthCtx, 2*time.Second)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("typesense reported unhealthy")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "listings"
	}

	log.Info().Str("url", cfg.URL).Str("collection", collection).Msg("Connected to Typesense")
	return &Client{client: client, collection: collection}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Collection returns the listings collection name
func (c *Client) Collection() string {
	return c.collection
}

// InitSchema ensures the listings collection exists, dropping it first when reset is set
func (c *Client) InitSchema(ctx context.Context, reset bool) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name != c.collection {
			continue
		}
		if !reset {
			return nil
		}
		if _, err := c.client.Collection(c.collection).Delete(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", c.collection, err)
		}
		log.Info().Str("collection", c.collection).Msg("Dropped Typesense collection")
	}

	schema := &api.CollectionSchema{
		Name: c.collection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "price_per_day", Type: "float"},
			{Name: "location_name", Type: "string", Optional: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "image_url", Type: "string", Optional: pointer.True(), Index: pointer.False()},
			{Name: "tags", Type: "string[]", Optional: pointer.True()},
			{Name: "created_at", Type: "string", Optional: pointer.True()},
			{Name: "created_at_unix", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at_unix"),
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}

	log.Info().Str("collection", c.collection).Msg("Created Typesense collection")
	return nil
}
