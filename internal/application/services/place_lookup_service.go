package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

const (
	DefaultSuggestDebounce = 350 * time.Millisecond
	DefaultSuggestLimit    = 5
	minSuggestRunes        = 2
)

// ApplySuggestions receives the candidates of a completed lookup.
type ApplySuggestions func([]entities.PlaceCandidate)

// PlaceLookup turns free text into place candidates.
//
// Suggest is debounced per input field. Each new call for a field supersedes
// the previous one: its timer is stopped and its request context cancelled, and
// apply only ever runs for the newest call. Lookups never surface errors;
// a failed lookup applies an empty list.
type PlaceLookup struct {
	provider providers.PlaceSearchProvider
	debounce time.Duration
	limit    int

	mu          sync.Mutex
	pending     map[string]*pendingLookup
	generations map[string]uint64
	closed      bool
}

type pendingLookup struct {
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
}

// NewPlaceLookup creates a lookup. A non-positive limit uses DefaultSuggestLimit.
func NewPlaceLookup(provider providers.PlaceSearchProvider, debounce time.Duration, limit int) *PlaceLookup {
	if debounce < 0 {
		debounce = 0
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return &PlaceLookup{
		provider:    provider,
		debounce:    debounce,
		limit:       limit,
		pending:     make(map[string]*pendingLookup),
		generations: make(map[string]uint64),
	}
}

// Suggest schedules a debounced lookup for field. Text shorter than two
// characters applies an empty list immediately without calling the provider.
func (l *PlaceLookup) Suggest(ctx context.Context, field, text string, apply ApplySuggestions) {
	trimmed := strings.TrimSpace(text)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	generation := l.supersedeLocked(field)

	if utf8.RuneCountInString(trimmed) < minSuggestRunes {
		l.mu.Unlock()
		apply([]entities.PlaceCandidate{})
		return
	}

	// The lookup outlives the caller's request, so only values are inherited.
	lookupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &pendingLookup{generation: generation, cancel: cancel}
	p.timer = time.AfterFunc(l.debounce, func() {
		l.run(lookupCtx, field, generation, trimmed, apply)
	})
	l.pending[field] = p
	l.mu.Unlock()
}

func (l *PlaceLookup) run(ctx context.Context, field string, generation uint64, text string, apply ApplySuggestions) {
	candidates, err := l.provider.SearchPlaces(ctx, text, l.limit)

	l.mu.Lock()
	current := l.generations[field] == generation && ctx.Err() == nil
	if p, ok := l.pending[field]; ok && p.generation == generation {
		p.cancel()
		delete(l.pending, field)
	}
	l.mu.Unlock()

	if !current {
		return
	}
	if err != nil {
		log.Debug().Err(err).Str("field", field).Msg("Place lookup failed")
		candidates = []entities.PlaceCandidate{}
	}
	if candidates == nil {
		candidates = []entities.PlaceCandidate{}
	}
	apply(candidates)
}

// supersedeLocked stops the pending lookup of field and returns the next generation.
func (l *PlaceLookup) supersedeLocked(field string) uint64 {
	if p, ok := l.pending[field]; ok {
		p.timer.Stop()
		p.cancel()
		delete(l.pending, field)
	}
	l.generations[field]++
	return l.generations[field]
}

// Search runs an immediate lookup and reports provider failures.
func (l *PlaceLookup) Search(ctx context.Context, text string) ([]entities.PlaceCandidate, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minSuggestRunes {
		return []entities.PlaceCandidate{}, nil
	}

	candidates, err := l.provider.SearchPlaces(ctx, trimmed, l.limit)
	if err != nil {
		return []entities.PlaceCandidate{}, err
	}
	if len(candidates) > l.limit {
		candidates = candidates[:l.limit]
	}
	if candidates == nil {
		candidates = []entities.PlaceCandidate{}
	}
	return candidates, nil
}

// Lookup runs an immediate lookup. It never fails: errors yield an empty list.
func (l *PlaceLookup) Lookup(ctx context.Context, text string) []entities.PlaceCandidate {
	candidates, err := l.Search(ctx, text)
	if err != nil {
		log.Debug().Err(err).Msg("Place lookup failed")
	}
	return candidates
}

// BestMatch returns the first match for text, nil when there is none, and the
// provider error when the lookup itself failed.
func (l *PlaceLookup) BestMatch(ctx context.Context, text string) (*entities.PlaceCandidate, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	candidates, err := l.provider.SearchPlaces(ctx, trimmed, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	return &best, nil
}

// Resolve returns the best match for text, or nil when nothing usable came back.
func (l *PlaceLookup) Resolve(ctx context.Context, text string) *entities.PlaceCandidate {
	place, err := l.BestMatch(ctx, text)
	if err != nil {
		log.Debug().Err(err).Msg("Place resolve failed")
	}
	return place
}

// Cancel drops the pending lookup of field, if any.
func (l *PlaceLookup) Cancel(field string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supersedeLocked(field)
}

// Close cancels every pending lookup. Later Suggest calls are ignored.
func (l *PlaceLookup) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for field := range l.pending {
		l.supersedeLocked(field)
	}
	l.closed = true
}
