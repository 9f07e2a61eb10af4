package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/adapters/storage"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

type mockKeyValueStore struct {
	mock.Mock
}

func (m *mockKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockKeyValueStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockKeyValueStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestSearchHistory_RecordSearchKeepsFiveMostRecent(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	for i := 1; i <= 6; i++ {
		history.RecordSearch(ctx, entities.RecentSearchEntry{Query: fmt.Sprintf("ville %d", i), RadiusKm: 10})
	}

	recent := history.RecentSearches(ctx)
	require.Len(t, recent, services.MaxRecentEntries)
	assert.Equal(t, "ville 6", recent[0].Query)
	assert.Equal(t, "ville 2", recent[4].Query)
	for _, e := range recent {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.At.IsZero())
	}
}

func TestSearchHistory_RecordSearchDeduplicates(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon", Category: entities.CategorySound, RadiusKm: 10})
	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Paris", RadiusKm: 10})
	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon", Category: entities.CategorySound, RadiusKm: 10, Date: "2025-07-14"})
	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon", Category: entities.CategorySound, RadiusKm: 20})

	recent := history.RecentSearches(ctx)
	require.Len(t, recent, 3)
	assert.Equal(t, 20, recent[0].RadiusKm)
	assert.Equal(t, "2025-07-14", recent[1].Date)
	assert.Equal(t, "Paris", recent[2].Query)

	assert.Equal(t, []string{"Lyon", "Paris"}, history.RecentLocations(ctx))
}

func TestSearchHistory_EmptyQueryIsNotALocation(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "  ", Category: entities.CategoryLighting})

	assert.Len(t, history.RecentSearches(ctx), 1)
	assert.Empty(t, history.RecentLocations(ctx))
}

func TestSearchHistory_RecentLocationsCapped(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	for _, name := range []string{"Lille", "Lyon", "Nantes", "Lille", "Paris", "Nice", "Brest"} {
		history.RecordLocation(ctx, name)
	}

	assert.Equal(t, []string{"Brest", "Nice", "Paris", "Lille", "Nantes"}, history.RecentLocations(ctx))
}

func TestSearchHistory_ClearSearchesAndClear(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon"})
	history.SaveStep(ctx, 2)
	history.SaveDraft(ctx, entities.ListingDraft{Title: "Sono"})

	history.ClearSearches(ctx)
	assert.Empty(t, history.RecentSearches(ctx))
	assert.Equal(t, []string{"Lyon"}, history.RecentLocations(ctx))

	history.Clear(ctx)
	assert.Empty(t, history.RecentLocations(ctx))
	_, ok := history.LoadStep(ctx)
	assert.False(t, ok)

	_, pending := history.PendingDraft(ctx)
	assert.True(t, pending)
}

func TestSearchHistory_StepRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	history := services.NewSearchHistory(store)

	_, ok := history.LoadStep(ctx)
	assert.False(t, ok)

	history.SaveStep(ctx, 3)
	step, ok := history.LoadStep(ctx)
	assert.True(t, ok)
	assert.Equal(t, 3, step)

	require.NoError(t, store.Set(ctx, services.KeyWizardStep, "deux"))
	_, ok = history.LoadStep(ctx)
	assert.False(t, ok)
}

func TestSearchHistory_DraftLifecycle(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	_, ok := history.PendingDraft(ctx)
	assert.False(t, ok)

	draft := entities.ListingDraft{Title: "Barnum", Category: "Extérieur", Price: "90", Location: "Nantes", Phone: "0600000000"}
	history.SaveDraft(ctx, draft)

	pending, ok := history.PendingDraft(ctx)
	require.True(t, ok)
	assert.Equal(t, draft, pending)

	history.CompleteDraft(ctx, draft)
	_, ok = history.PendingDraft(ctx)
	assert.False(t, ok)
	assert.Equal(t, entities.LastUsedDefaults{
		Category:     "Extérieur",
		LocationName: "Nantes",
		Phone:        "0600000000",
	}, history.LastUsedDefaults(ctx))

	history.SaveDraft(ctx, entities.ListingDraft{Title: "Tables"})
	history.DiscardDraft(ctx)
	_, ok = history.PendingDraft(ctx)
	assert.False(t, ok)
}

func TestSearchHistory_CompleteDraftKeepsDefaultsForBlankFields(t *testing.T) {
	ctx := context.Background()
	history := services.NewSearchHistory(storage.NewMemoryStore())

	history.CompleteDraft(ctx, entities.ListingDraft{Category: "Cuisine", Phone: "0611111111"})
	history.CompleteDraft(ctx, entities.ListingDraft{Category: "Mobilier"})

	defaults := history.LastUsedDefaults(ctx)
	assert.Equal(t, "Mobilier", defaults.Category)
	assert.Equal(t, "0611111111", defaults.Phone)
	assert.Empty(t, defaults.LocationName)
}

func TestSearchHistory_MalformedValuesReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	history := services.NewSearchHistory(store)

	require.NoError(t, store.Set(ctx, services.KeyRecentSearches, "{not json"))
	require.NoError(t, store.Set(ctx, services.KeyRecentLocations, `"Lyon"`))

	assert.Empty(t, history.RecentSearches(ctx))
	assert.Empty(t, history.RecentLocations(ctx))

	history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon"})
	assert.Len(t, history.RecentSearches(ctx), 1)
}

func TestSearchHistory_StorageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := &mockKeyValueStore{}
	failure := errors.New("storage disabled")
	store.On("Get", mock.Anything, mock.Anything).Return("", failure)
	store.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(failure)
	store.On("Remove", mock.Anything, mock.Anything).Return(failure)
	history := services.NewSearchHistory(store)

	assert.NotPanics(t, func() {
		recent := history.RecordSearch(ctx, entities.RecentSearchEntry{Query: "Lyon"})
		assert.Len(t, recent, 1)
		history.ClearSearches(ctx)
		history.SaveStep(ctx, 2)
		history.CompleteDraft(ctx, entities.ListingDraft{Phone: "06"})
	})

	assert.Empty(t, history.RecentSearches(ctx))
	assert.Empty(t, history.RecentLocations(ctx))
	_, ok := history.LoadStep(ctx)
	assert.False(t, ok)
	assert.Equal(t, entities.LastUsedDefaults{}, history.LastUsedDefaults(ctx))
	store.AssertCalled(t, "Set", mock.Anything, services.KeyRecentSearches, mock.Anything)
}

var _ providers.KeyValueStore = (*mockKeyValueStore)(nil)
