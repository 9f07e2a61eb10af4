package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/adapters/storage"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

func newTestSession(t *testing.T, provider *stubPlaceProvider, opts services.SessionOptions) (*services.SearchSession, *services.SearchHistory) {
	t.Helper()
	lookup := services.NewPlaceLookup(provider, 0, 5)
	t.Cleanup(lookup.Close)
	catalog := services.NewListingCatalog(&stubListingSource{records: []entities.ListingRecord{
		{"id": "A", "category": "Photobooth", "price_per_day": 150.0, "location_lat": 48.85, "location_lon": 2.35, "created_at": "2025-02-01T00:00:00Z"},
		{"id": "B", "category": "Photobooth", "price_per_day": 80.0, "location_lat": 45.75, "location_lon": 4.85, "created_at": "2025-01-01T00:00:00Z"},
	}}, "postgres", nil, 50, nil)
	history := services.NewSearchHistory(storage.NewMemoryStore())
	return services.NewSearchSession(context.Background(), "session-1", lookup, catalog, history, opts), history
}

func waitForSuggestions(t *testing.T, s *services.SearchSession, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Suggestions()) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestSearchSession_SetQueryAndSelectSuggestion(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t, &stubPlaceProvider{}, services.DefaultSessionOptions())

	session.SetQuery(ctx, "Paris")
	waitForSuggestions(t, session, 1)

	selected, err := session.SelectSuggestion(0)
	require.NoError(t, err)
	assert.Equal(t, "Paris", selected.DisplayName)

	criteria := session.Criteria()
	require.NotNil(t, criteria.Place)
	assert.Equal(t, "Paris", criteria.Query)
	assert.Empty(t, session.Suggestions())

	_, err = session.SelectSuggestion(3)
	assert.ErrorIs(t, err, services.ErrSuggestionNotFound)

	session.SetQuery(ctx, "Paris 15")
	assert.Nil(t, session.Criteria().Place, "typing drops the selected place")
}

func TestSearchSession_ShortQueryClearsSuggestions(t *testing.T) {
	ctx := context.Background()
	provider := &stubPlaceProvider{}
	session, _ := newTestSession(t, provider, services.DefaultSessionOptions())

	session.SetQuery(ctx, "Lyon")
	waitForSuggestions(t, session, 1)

	session.SetQuery(ctx, "L")
	assert.Empty(t, session.Suggestions())
	assert.Equal(t, 1, provider.callCount())
}

func TestSearchSession_StepChangeClearsSuggestions(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t, &stubPlaceProvider{}, services.DefaultSessionOptions())

	session.SetQuery(ctx, "Lille")
	waitForSuggestions(t, session, 1)

	require.NoError(t, session.Advance(ctx))
	assert.Equal(t, services.StepRefine, session.Step())
	assert.Empty(t, session.Suggestions())
}

func TestSearchSession_GatedAdvanceRefused(t *testing.T) {
	ctx := context.Background()
	opts := services.DefaultSessionOptions()
	opts.GatedWizard = true
	session, _ := newTestSession(t, &stubPlaceProvider{}, opts)

	assert.ErrorIs(t, session.Advance(ctx), services.ErrPlaceRequired)
	assert.Equal(t, services.StepLocation, session.Step())

	_, err := session.Submit(ctx)
	assert.ErrorIs(t, err, services.ErrPlaceRequired)
	assert.Equal(t, services.StepLocation, session.Step())
}

func TestSearchSession_SubmitResolvesAndRecords(t *testing.T) {
	ctx := context.Background()
	provider := &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return []entities.PlaceCandidate{place("Lyon, France", 45.76, 4.83)}, nil
	}}
	session, history := newTestSession(t, provider, services.DefaultSessionOptions())

	session.ApplyRecentLocation("Lyon")
	date := "2025-07-14"
	_, err := session.UpdateCriteria(services.CriteriaPatch{Date: &date})
	require.NoError(t, err)

	criteria, err := session.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, criteria.Place)
	assert.Equal(t, "Lyon, France", criteria.Place.DisplayName)
	assert.Equal(t, services.StepResults, session.Step())

	recent := history.RecentSearches(ctx)
	require.Len(t, recent, 1)
	assert.Equal(t, "Lyon", recent[0].Query, "history keeps the entered text, not the geocoder label")
	assert.Equal(t, []string{"Lyon"}, history.RecentLocations(ctx))
	assert.Equal(t, "2025-07-14", recent[0].Date)
	assert.Equal(t, 10, recent[0].RadiusKm)

	last := provider.call(provider.callCount() - 1)
	assert.Equal(t, 1, last.limit)
}

func TestSearchSession_SubmitRecordsSelectedSuggestion(t *testing.T) {
	ctx := context.Background()
	provider := &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return []entities.PlaceCandidate{place("Paris, Île-de-France, France", 48.85, 2.35)}, nil
	}}
	session, history := newTestSession(t, provider, services.DefaultSessionOptions())

	session.SetQuery(ctx, "  paris ")
	waitForSuggestions(t, session, 1)
	_, err := session.SelectSuggestion(0)
	require.NoError(t, err)

	_, err = session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paris, Île-de-France, France", history.RecentSearches(ctx)[0].Query)

	session.SetQuery(ctx, "  paris ")
	_, err = session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "paris", history.RecentSearches(ctx)[0].Query)
	assert.Equal(t, []string{"paris", "Paris, Île-de-France, France"}, history.RecentLocations(ctx))
}

func TestSearchSession_SubmitWithUnresolvableText(t *testing.T) {
	ctx := context.Background()
	provider := &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return nil, nil
	}}
	session, history := newTestSession(t, provider, services.DefaultSessionOptions())

	session.ApplyRecentLocation("Atlantis")
	criteria, err := session.Submit(ctx)
	require.NoError(t, err)

	assert.Nil(t, criteria.Place)
	assert.Equal(t, "Atlantis", history.RecentSearches(ctx)[0].Query)
	assert.Len(t, session.Results(ctx), 2, "unresolved text does not filter by distance")
}

func TestSearchSession_UpdateCriteria(t *testing.T) {
	session, _ := newTestSession(t, &stubPlaceProvider{}, services.DefaultSessionOptions())

	radius := 500
	category := "photobooth"
	sort := "price_desc"
	photo := true
	criteria, err := session.UpdateCriteria(services.CriteriaPatch{
		RadiusKm:  &radius,
		Category:  &category,
		Sort:      &sort,
		PhotoOnly: &photo,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, criteria.RadiusKm)
	assert.Equal(t, entities.CategoryPhotobooth, criteria.Category)
	assert.Equal(t, entities.SortPriceDesc, criteria.Sort)
	assert.True(t, criteria.PhotoOnly)

	zero := 0
	criteria, err = session.UpdateCriteria(services.CriteriaPatch{RadiusKm: &zero})
	require.NoError(t, err)
	assert.Equal(t, 1, criteria.RadiusKm)

	unknown := "Karaoké"
	_, err = session.UpdateCriteria(services.CriteriaPatch{Category: &unknown})
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, entities.CategoryPhotobooth, session.Criteria().Category)
}

func TestSearchSession_ApplyRecentSearch(t *testing.T) {
	session, _ := newTestSession(t, &stubPlaceProvider{}, services.DefaultSessionOptions())

	session.ApplyRecentSearch(entities.RecentSearchEntry{Query: "Nantes", Category: entities.CategoryOutdoor, Date: "2025-08-01", RadiusKm: 25})
	c := session.Criteria()
	assert.Equal(t, "Nantes", c.Query)
	assert.Equal(t, entities.CategoryOutdoor, c.Category)
	assert.Equal(t, "2025-08-01", c.Date)
	assert.Equal(t, 25, c.RadiusKm)

	session.ApplyRecentSearch(entities.RecentSearchEntry{Query: "Brest"})
	c = session.Criteria()
	assert.Equal(t, entities.CategoryAll, c.Category)
	assert.Equal(t, 10, c.RadiusKm)
}

func TestSearchSession_Results(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t, &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return []entities.PlaceCandidate{place("Paris", 48.85, 2.35)}, nil
	}}, services.DefaultSessionOptions())

	session.SetQuery(ctx, "Paris")
	waitForSuggestions(t, session, 1)
	_, err := session.SelectSuggestion(0)
	require.NoError(t, err)

	results := session.Results(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Listing.ID)

	radius := 100
	sort := "price_asc"
	_, err = session.UpdateCriteria(services.CriteriaPatch{RadiusKm: &radius, Sort: &sort})
	require.NoError(t, err)
	assert.Len(t, session.Results(ctx), 1, "Lyon is beyond the 100 km cap")
}

func TestSearchSession_ResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	session, history := newTestSession(t, &stubPlaceProvider{}, services.DefaultSessionOptions())

	session.ApplyRecentLocation("Lyon")
	_, err := session.Submit(ctx)
	require.NoError(t, err)

	session.Reset(ctx)
	assert.Equal(t, services.StepLocation, session.Step())
	assert.Equal(t, entities.DefaultSearchCriteria(), session.Criteria())

	step, ok := history.LoadStep(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, step)

	state := session.State(ctx)
	assert.Equal(t, services.VisibleFields(services.StepLocation), state.VisibleFields)
	assert.Len(t, state.RecentSearches, 1)
	assert.Equal(t, []string{"Lyon"}, state.RecentLocations)
}
