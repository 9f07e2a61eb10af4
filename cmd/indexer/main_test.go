package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

type fakeSource struct {
	records []entities.ListingRecord
	err     error
}

func (s *fakeSource) ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error) {
	return s.records, s.err
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]entities.ListingRecord), args.Error(1)
}

func (m *mockIndex) InitSchema(ctx context.Context, reset bool) error {
	return m.Called(ctx, reset).Error(0)
}

func (m *mockIndex) Index(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func TestIndexListings(t *testing.T) {
	source := &fakeSource{records: []entities.ListingRecord{
		{"id": "l-1", "title": "Enceinte", "category": "Sonorisation", "price_per_day": 55.0, "location_name": "Paris", "location_lat": 48.85, "location_lon": 2.35},
		{"title": "No id"},
		{"id": "l-2", "title": "Guirlande", "category": "Lumière", "price_per_day": "20"},
		{"id": "l-3", "title": "Tente", "category": "Extérieur"},
	}}

	index := &mockIndex{}
	index.On("Index", mock.Anything, mock.MatchedBy(func(l *entities.Listing) bool { return l.ID == "l-1" })).Return(nil).Run(func(args mock.Arguments) {
		listing := args.Get(1).(*entities.Listing)
		require.NotNil(t, listing.Location.Coordinates)
		assert.Equal(t, 48.85, listing.Location.Coordinates.Latitude)
	})
	index.On("Index", mock.Anything, mock.MatchedBy(func(l *entities.Listing) bool { return l.ID == "l-2" })).Return(nil).Run(func(args mock.Arguments) {
		assert.Equal(t, 20.0, args.Get(1).(*entities.Listing).PricePerDay)
	})
	index.On("Index", mock.Anything, mock.MatchedBy(func(l *entities.Listing) bool { return l.ID == "l-3" })).Return(errors.New("503"))

	indexed, skipped, err := indexListings(context.Background(), source, index)

	require.NoError(t, err)
	assert.Equal(t, 2, indexed)
	assert.Equal(t, 2, skipped)
	index.AssertNumberOfCalls(t, "Index", 3)
}

func TestIndexListings_SourceError(t *testing.T) {
	index := &mockIndex{}

	_, _, err := indexListings(context.Background(), &fakeSource{err: errors.New("connection refused")}, index)

	assert.Error(t, err)
	index.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
}

func TestIndexListings_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	indexed, _, err := indexListings(ctx, &fakeSource{records: []entities.ListingRecord{{"id": "l-1"}}}, &mockIndex{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, indexed)
}

func TestNewReindexedEvent(t *testing.T) {
	event := newReindexedEvent(12)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, entities.CatalogEventReindexed, event.Type)
	assert.Equal(t, 12, event.Count)
	assert.False(t, event.Timestamp.IsZero())
}
