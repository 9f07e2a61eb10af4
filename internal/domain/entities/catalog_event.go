package entities

import "time"

// CatalogEventType identifies what happened to the listing catalog.
type CatalogEventType string

const (
	// CatalogEventReindexed is emitted after the search index was rebuilt from the store.
	CatalogEventReindexed CatalogEventType = "listings.reindexed"
)

// CatalogEvent tells running services that their cached listings are stale.
type CatalogEvent struct {
	ID        string           `json:"id"`
	Type      CatalogEventType `json:"type"`
	Source    string           `json:"source"`
	Count     int              `json:"count"`
	Timestamp time.Time        `json:"timestamp"`
}
