package search

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	tsclient "github.com/delivevent/marketplace/backend/internal/infrastructure/clients/typesense"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

const maxPerPage = 250

// TypesenseListingAdapter serves and indexes listings through a Typesense collection
type TypesenseListingAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseListingAdapter implements ListingIndex
var _ repositories.ListingIndex = (*TypesenseListingAdapter)(nil)

// NewTypesenseListingAdapter creates a new Typesense adapter
func NewTypesenseListingAdapter(client *tsclient.Client) *TypesenseListingAdapter {
	return &TypesenseListingAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseListingAdapter) InitSchema(ctx context.Context, reset bool) error {
	return a.client.InitSchema(ctx, reset)
}

// Index upserts a listing document
func (a *TypesenseListingAdapter) Index(ctx context.Context, listing *entities.Listing) error {
	document := listingDocument(listing)

	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, document)
	if err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to index listing %s", listing.ID), err)
	}
	return nil
}

// ListListings returns the newest documents as snake_case records
func (a *TypesenseListingAdapter) ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error) {
	perPage := limit
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String("*"),
		QueryBy: pointer.String("title"),
		SortBy:  pointer.String("created_at_unix:desc"),
		Page:    pointer.Int(1),
		PerPage: pointer.Int(perPage),
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to search listings", err)
	}
	if result.Hits == nil {
		return nil, nil
	}

	records := make([]entities.ListingRecord, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		records = append(records, documentRecord(*hit.Document))
	}
	return records, nil
}

func listingDocument(listing *entities.Listing) map[string]interface{} {
	document := map[string]interface{}{
		"id":              listing.ID,
		"title":           listing.Title,
		"category":        string(listing.Category),
		"price_per_day":   listing.PricePerDay,
		"created_at_unix": createdAtUnix(listing.CreatedAt),
	}
	if listing.Location.Name != "" {
		document["location_name"] = listing.Location.Name
	}
	if c := listing.Location.Coordinates; c != nil {
		document["location"] = []float64{c.Latitude, c.Longitude}
	}
	if listing.ImageURL != "" {
		document["image_url"] = listing.ImageURL
	}
	if len(listing.Tags) > 0 {
		document["tags"] = listing.Tags
	}
	if listing.CreatedAt != "" {
		document["created_at"] = listing.CreatedAt
	}
	return document
}

func documentRecord(doc map[string]interface{}) entities.ListingRecord {
	record := entities.ListingRecord{}
	for _, key := range []string{"id", "title", "category", "price_per_day", "location_name", "image_url", "tags", "created_at"} {
		if v, ok := doc[key]; ok {
			record[key] = v
		}
	}
	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, latOK := loc[0].(float64)
		lon, lonOK := loc[1].(float64)
		if latOK && lonOK {
			record["location_lat"] = lat
			record["location_lon"] = lon
		}
	}
	return record
}

func createdAtUnix(createdAt string) int64 {
	if createdAt == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, createdAt); err == nil {
			return t.Unix()
		}
	}
	return 0
}
