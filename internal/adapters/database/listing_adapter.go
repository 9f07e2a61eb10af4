package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

const listingsTable = "listings"

// ListingAdapter reads listing rows from PostgreSQL
type ListingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client) *ListingAdapter {
	return &ListingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.ListingSource = (*ListingAdapter)(nil)

// ListListings returns the newest listings as snake_case records
func (a *ListingAdapter) ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error) {
	ds := a.db.Select(
		"id", "title", "category", "price_per_day",
		"location_name", "location_lat", "location_lon",
		"image_url", "tags", "created_at",
	).From(listingsTable).
		Order(goqu.I("created_at").Desc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build listings query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list listings", err)
	}
	defer rows.Close()

	var records []entities.ListingRecord
	for rows.Next() {
		var (
			id, title, category      string
			price                    sql.NullFloat64
			locationName, imageURL   sql.NullString
			locationLat, locationLon sql.NullFloat64
			tags                     pq.StringArray
			createdAt                sql.NullTime
		)

		err := rows.Scan(
			&id,
			&title,
			&category,
			&price,
			&locationName,
			&locationLat,
			&locationLon,
			&imageURL,
			&tags,
			&createdAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}

		record := entities.ListingRecord{
			"id":       id,
			"title":    title,
			"category": category,
		}
		if price.Valid {
			record["price_per_day"] = price.Float64
		}
		if locationName.Valid {
			record["location_name"] = locationName.String
		}
		if locationLat.Valid && locationLon.Valid {
			record["location_lat"] = locationLat.Float64
			record["location_lon"] = locationLon.Float64
		}
		if imageURL.Valid {
			record["image_url"] = imageURL.String
		}
		if len(tags) > 0 {
			record["tags"] = []string(tags)
		}
		if createdAt.Valid {
			record["created_at"] = createdAt.Time.UTC().Format(time.RFC3339)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate listings", err)
	}

	return records, nil
}

const listingsSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	category      TEXT NOT NULL,
	price_per_day DOUBLE PRECISION,
	location_name TEXT,
	location_lat  DOUBLE PRECISION,
	location_lon  DOUBLE PRECISION,
	image_url     TEXT,
	tags          TEXT[],
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS listings_created_at_idx ON listings (created_at DESC);
`

// EnsureSchema creates the listings table when missing
func (a *ListingAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, listingsSchema); err != nil {
		return apperrors.NewInternalError("failed to create listings table", err)
	}
	return nil
}

// Upsert inserts a listing or overwrites the row with the same id
func (a *ListingAdapter) Upsert(ctx context.Context, listing *entities.Listing) error {
	if listing.ID == "" {
		return apperrors.NewValidationError("listing id is required")
	}

	record := goqu.Record{
		"id":            listing.ID,
		"title":         listing.Title,
		"category":      string(listing.Category),
		"price_per_day": listing.PricePerDay,
		"location_name": nullString(listing.Location.Name),
		"image_url":     nullString(listing.ImageURL),
		"tags":          pq.StringArray(listing.Tags),
	}
	if listing.Location.Coordinates != nil {
		record["location_lat"] = listing.Location.Coordinates.Latitude
		record["location_lon"] = listing.Location.Coordinates.Longitude
	}
	if listing.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, listing.CreatedAt)
		if err != nil {
			return apperrors.NewValidationError("created_at must be RFC 3339")
		}
		record["created_at"] = createdAt
	}

	update := goqu.Record{}
	for column := range record {
		if column != "id" {
			update[column] = goqu.L("EXCLUDED." + column)
		}
	}

	query, args, err := a.db.Insert(listingsTable).
		Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", update)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build listing upsert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert listing", err)
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
