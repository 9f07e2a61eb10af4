package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

type placeCall struct {
	query string
	limit int
	ctx   context.Context
}

type stubPlaceProvider struct {
	mu    sync.Mutex
	calls []placeCall
	fn    func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error)
}

func (s *stubPlaceProvider) SearchPlaces(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, placeCall{query: query, limit: limit, ctx: ctx})
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return []entities.PlaceCandidate{place(query, 48.85, 2.35)}, nil
	}
	return fn(ctx, query, limit)
}

func (s *stubPlaceProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubPlaceProvider) call(i int) placeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func place(name string, lat, lon float64) entities.PlaceCandidate {
	return entities.PlaceCandidate{DisplayName: name, Coordinates: entities.Coordinates{Latitude: lat, Longitude: lon}}
}

type applyRecorder struct {
	mu      sync.Mutex
	applied [][]entities.PlaceCandidate
	signal  chan struct{}
}

func newApplyRecorder() *applyRecorder {
	return &applyRecorder{signal: make(chan struct{}, 16)}
}

func (r *applyRecorder) apply(c []entities.PlaceCandidate) {
	r.mu.Lock()
	r.applied = append(r.applied, c)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *applyRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("suggestions were never applied")
	}
}

func (r *applyRecorder) snapshot() [][]entities.PlaceCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]entities.PlaceCandidate(nil), r.applied...)
}

func TestPlaceLookup_ShortTextAppliesEmptyWithoutProviderCall(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 10*time.Millisecond, 5)
	defer lookup.Close()
	rec := newApplyRecorder()

	lookup.Suggest(context.Background(), "place", " p ", rec.apply)

	applied := rec.snapshot()
	require.Len(t, applied, 1)
	assert.Empty(t, applied[0])
	assert.NotNil(t, applied[0])
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, provider.callCount())
}

func TestPlaceLookup_DebounceCollapsesBurst(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 30*time.Millisecond, 5)
	defer lookup.Close()
	rec := newApplyRecorder()

	for _, text := range []string{"pa", "par", "pari", "paris"} {
		lookup.Suggest(context.Background(), "place", text, rec.apply)
	}
	rec.wait(t)
	time.Sleep(60 * time.Millisecond)

	require.Equal(t, 1, provider.callCount())
	assert.Equal(t, "paris", provider.call(0).query)
	assert.Equal(t, 5, provider.call(0).limit)

	applied := rec.snapshot()
	require.Len(t, applied, 1)
	assert.Equal(t, "paris", applied[0][0].DisplayName)
}

func TestPlaceLookup_OnlyLatestLookupApplies(t *testing.T) {
	started := make(chan struct{})
	provider := &stubPlaceProvider{}
	provider.fn = func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		if query == "paris" {
			close(started)
			<-ctx.Done()
			return []entities.PlaceCandidate{place("stale paris", 48.85, 2.35)}, nil
		}
		return []entities.PlaceCandidate{place("Paris 15e Arrondissement", 48.84, 2.29)}, nil
	}
	lookup := services.NewPlaceLookup(provider, 0, 5)
	defer lookup.Close()
	rec := newApplyRecorder()

	lookup.Suggest(context.Background(), "place", "paris", rec.apply)
	<-started
	lookup.Suggest(context.Background(), "place", "paris 15", rec.apply)
	rec.wait(t)
	time.Sleep(30 * time.Millisecond)

	applied := rec.snapshot()
	require.Len(t, applied, 1)
	assert.Equal(t, "Paris 15e Arrondissement", applied[0][0].DisplayName)
	assert.ErrorIs(t, provider.call(0).ctx.Err(), context.Canceled)
}

func TestPlaceLookup_FieldsAreIndependent(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 10*time.Millisecond, 5)
	defer lookup.Close()
	search := newApplyRecorder()
	listing := newApplyRecorder()

	lookup.Suggest(context.Background(), "search", "lyon", search.apply)
	lookup.Suggest(context.Background(), "listing", "nantes", listing.apply)
	search.wait(t)
	listing.wait(t)

	assert.Equal(t, "lyon", search.snapshot()[0][0].DisplayName)
	assert.Equal(t, "nantes", listing.snapshot()[0][0].DisplayName)
}

func TestPlaceLookup_FailureAppliesEmpty(t *testing.T) {
	provider := &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return nil, errors.New("geocoder unreachable")
	}}
	lookup := services.NewPlaceLookup(provider, 0, 5)
	defer lookup.Close()
	rec := newApplyRecorder()

	lookup.Suggest(context.Background(), "place", "bordeaux", rec.apply)
	rec.wait(t)

	applied := rec.snapshot()
	require.Len(t, applied, 1)
	assert.Empty(t, applied[0])
}

func TestPlaceLookup_CancelDropsPendingLookup(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 30*time.Millisecond, 5)
	defer lookup.Close()
	rec := newApplyRecorder()

	lookup.Suggest(context.Background(), "place", "lille", rec.apply)
	lookup.Cancel("place")
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 0, provider.callCount())
	assert.Empty(t, rec.snapshot())
}

func TestPlaceLookup_CloseIgnoresLaterSuggestions(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 0, 5)
	rec := newApplyRecorder()

	lookup.Close()
	lookup.Suggest(context.Background(), "place", "lille", rec.apply)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, provider.callCount())
	assert.Empty(t, rec.snapshot())
}

func TestPlaceLookup_Lookup(t *testing.T) {
	provider := &stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		out := make([]entities.PlaceCandidate, 8)
		for i := range out {
			out[i] = place(query, 45, 4)
		}
		return out, nil
	}}
	lookup := services.NewPlaceLookup(provider, 0, 5)

	assert.Len(t, lookup.Lookup(context.Background(), "lyon"), 5)
	assert.Empty(t, lookup.Lookup(context.Background(), "l"))
	assert.Equal(t, 1, provider.callCount())
}

func TestPlaceLookup_Resolve(t *testing.T) {
	provider := &stubPlaceProvider{}
	lookup := services.NewPlaceLookup(provider, 0, 5)

	resolved := lookup.Resolve(context.Background(), " Lyon ")
	require.NotNil(t, resolved)
	assert.Equal(t, "Lyon", resolved.DisplayName)
	assert.Equal(t, 1, provider.call(0).limit)

	assert.Nil(t, lookup.Resolve(context.Background(), "   "))

	failing := services.NewPlaceLookup(&stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return nil, errors.New("timeout")
	}}, 0, 5)
	assert.Nil(t, failing.Resolve(context.Background(), "Lyon"))

	empty := services.NewPlaceLookup(&stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return nil, nil
	}}, 0, 5)
	assert.Nil(t, empty.Resolve(context.Background(), "Atlantis"))
}

func TestPlaceLookup_SearchAndBestMatchReportFailures(t *testing.T) {
	errUnavailable := errors.New("503 service unavailable")
	lookup := services.NewPlaceLookup(&stubPlaceProvider{fn: func(ctx context.Context, query string, limit int) ([]entities.PlaceCandidate, error) {
		return nil, errUnavailable
	}}, 0, 5)
	ctx := context.Background()

	candidates, err := lookup.Search(ctx, "paris")
	assert.ErrorIs(t, err, errUnavailable)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)

	best, err := lookup.BestMatch(ctx, "paris")
	assert.ErrorIs(t, err, errUnavailable)
	assert.Nil(t, best)

	// Short or blank text never reaches the provider, so it cannot fail.
	_, err = lookup.Search(ctx, "p")
	assert.NoError(t, err)
	best, err = lookup.BestMatch(ctx, "  ")
	assert.NoError(t, err)
	assert.Nil(t, best)
}
