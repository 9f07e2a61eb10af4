package repositories

import (
	"context"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

// ListingSource provides the raw listing rows a search session works on.
type ListingSource interface {
	// ListListings returns up to limit rows, newest first. limit <= 0 means no limit.
	ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error)
}

// ListingIndex is a search index that mirrors the listing store.
type ListingIndex interface {
	ListingSource

	// InitSchema ensures the index collection exists
	InitSchema(ctx context.Context, reset bool) error

	// Index upserts a normalized listing
	Index(ctx context.Context, listing *entities.Listing) error
}
