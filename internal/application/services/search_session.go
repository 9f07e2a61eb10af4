package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

// ErrSuggestionNotFound is returned when selecting a suggestion index that is not shown.
var ErrSuggestionNotFound = errors.New("suggestion not found")

// SessionOptions configures new search sessions.
type SessionOptions struct {
	GatedWizard     bool
	DefaultRadiusKm int
	MinRadiusKm     int
	MaxRadiusKm     int
}

// DefaultSessionOptions mirrors the search form defaults: radius 10 km within 1 to 100 km, ungated.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		DefaultRadiusKm: entities.DefaultRadiusKm,
		MinRadiusKm:     1,
		MaxRadiusKm:     100,
	}
}

// ClampRadius bounds radius to the configured range.
func (o SessionOptions) ClampRadius(radius int) int {
	if radius < o.MinRadiusKm {
		return o.MinRadiusKm
	}
	if o.MaxRadiusKm > 0 && radius > o.MaxRadiusKm {
		return o.MaxRadiusKm
	}
	return radius
}

func (o SessionOptions) defaultCriteria() entities.SearchCriteria {
	c := entities.DefaultSearchCriteria()
	if o.DefaultRadiusKm > 0 {
		c.RadiusKm = o.ClampRadius(o.DefaultRadiusKm)
	}
	return c
}

// CriteriaPatch carries the criteria fields to change. Nil fields are left as is.
type CriteriaPatch struct {
	Category  *string `json:"category,omitempty"`
	RadiusKm  *int    `json:"radius_km,omitempty"`
	Sort      *string `json:"sort,omitempty"`
	PhotoOnly *bool   `json:"photo_only,omitempty"`
	Date      *string `json:"date,omitempty"`
}

// SessionState is a point-in-time view of a session.
type SessionState struct {
	ID              string                       `json:"id"`
	Step            WizardStep                   `json:"step"`
	Gated           bool                         `json:"gated"`
	VisibleFields   FieldSet                     `json:"visible_fields"`
	Criteria        entities.SearchCriteria      `json:"criteria"`
	Suggestions     []entities.PlaceCandidate    `json:"suggestions"`
	RecentSearches  []entities.RecentSearchEntry `json:"recent_searches,omitempty"`
	RecentLocations []string                     `json:"recent_locations,omitempty"`
	CatalogSource   string                       `json:"catalog_source"`
}

// SearchSession holds one user's search: criteria, wizard step, place
// suggestions and history. Methods are safe for concurrent use.
type SearchSession struct {
	id      string
	opts    SessionOptions
	lookup  *PlaceLookup
	catalog *ListingCatalog
	history *SearchHistory

	mu            sync.Mutex
	criteria      entities.SearchCriteria
	wizard        *SearchWizard
	suggestions   []entities.PlaceCandidate
	suggestionGen uint64
	lastActive    time.Time
}

// NewSearchSession creates a session and restores its persisted wizard step.
func NewSearchSession(ctx context.Context, id string, lookup *PlaceLookup, catalog *ListingCatalog, history *SearchHistory, opts SessionOptions) *SearchSession {
	s := &SearchSession{
		id:          id,
		opts:        opts,
		lookup:      lookup,
		catalog:     catalog,
		history:     history,
		criteria:    opts.defaultCriteria(),
		suggestions: []entities.PlaceCandidate{},
		lastActive:  time.Now(),
	}
	s.wizard = NewSearchWizard(ctx, history, opts.GatedWizard)
	s.wizard.OnStepChange(func(from, to WizardStep) {
		s.clearSuggestionsLocked()
	})
	return s
}

// ID returns the session id, which is also its storage namespace.
func (s *SearchSession) ID() string {
	return s.id
}

// History returns the session's persisted history
func (s *SearchSession) History() *SearchHistory {
	return s.history
}

func (s *SearchSession) suggestField() string {
	return s.id + "/place"
}

// SetQuery replaces the place text. Any selected place is dropped and new
// suggestions are requested.
func (s *SearchSession) SetQuery(ctx context.Context, text string) {
	s.mu.Lock()
	s.touchLocked()
	s.criteria.Query = text
	s.criteria.Place = nil
	s.suggestionGen++
	generation := s.suggestionGen
	s.mu.Unlock()

	s.lookup.Suggest(ctx, s.suggestField(), text, func(candidates []entities.PlaceCandidate) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.suggestionGen == generation {
			s.suggestions = candidates
		}
	})
}

// Suggestions returns a copy of the current place suggestions.
func (s *SearchSession) Suggestions() []entities.PlaceCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.PlaceCandidate{}, s.suggestions...)
}

// SelectSuggestion picks the suggestion at index as the search place.
func (s *SearchSession) SelectSuggestion(index int) (entities.PlaceCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if index < 0 || index >= len(s.suggestions) {
		return entities.PlaceCandidate{}, ErrSuggestionNotFound
	}
	selected := s.suggestions[index]
	s.criteria.Place = &selected
	s.criteria.Query = selected.DisplayName
	s.clearSuggestionsLocked()
	return selected, nil
}

// ApplyRecentLocation uses a remembered location name as free text. It is
// resolved to coordinates on submit.
func (s *SearchSession) ApplyRecentLocation(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.criteria.Query = strings.TrimSpace(name)
	s.criteria.Place = nil
	s.clearSuggestionsLocked()
}

// ApplyRecentSearch restores the query, category, date and radius of a past search.
func (s *SearchSession) ApplyRecentSearch(entry entities.RecentSearchEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	s.criteria.Query = entry.Query
	s.criteria.Place = nil
	if category, ok := entities.ParseCategory(string(entry.Category)); ok {
		s.criteria.Category = category
	} else {
		s.criteria.Category = entities.CategoryAll
	}
	s.criteria.Date = entry.Date
	if entry.RadiusKm > 0 {
		s.criteria.RadiusKm = s.opts.ClampRadius(entry.RadiusKm)
	} else {
		s.criteria.RadiusKm = s.opts.defaultCriteria().RadiusKm
	}
	s.clearSuggestionsLocked()
}

// UpdateCriteria applies patch. Unknown categories are rejected and the
// radius is clamped to the configured bounds.
func (s *SearchSession) UpdateCriteria(patch CriteriaPatch) (entities.SearchCriteria, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	next := s.criteria
	if patch.Category != nil {
		category, ok := entities.ParseCategory(*patch.Category)
		if !ok {
			return s.criteria, apperrors.NewValidationError("unknown category: " + *patch.Category)
		}
		next.Category = category
	}
	if patch.RadiusKm != nil {
		next.RadiusKm = s.opts.ClampRadius(*patch.RadiusKm)
	}
	if patch.Sort != nil {
		next.Sort = entities.ParseSortMode(*patch.Sort)
	}
	if patch.PhotoOnly != nil {
		next.PhotoOnly = *patch.PhotoOnly
	}
	if patch.Date != nil {
		next.Date = strings.TrimSpace(*patch.Date)
	}
	s.criteria = next
	return next, nil
}

// Advance moves the wizard forward, refusing when gated without a place.
func (s *SearchSession) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.wizard.Advance(ctx, s.criteria)
}

// Retreat moves the wizard back one step
func (s *SearchSession) Retreat(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.wizard.Retreat(ctx)
}

// Submit finalizes the criteria. Free text without a selected place is
// resolved to its best match when possible; the search is then recorded under
// the entered text and the wizard moves to the results step.
func (s *SearchSession) Submit(ctx context.Context) (entities.SearchCriteria, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.wizard.Gated() && !s.criteria.HasPlace() {
		s.mu.Unlock()
		return entities.SearchCriteria{}, ErrPlaceRequired
	}
	query := strings.TrimSpace(s.criteria.Query)
	needsResolve := s.criteria.Place == nil && query != ""
	s.mu.Unlock()

	var resolved *entities.PlaceCandidate
	if needsResolve {
		resolved = s.lookup.Resolve(ctx, query)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if resolved != nil && s.criteria.Place == nil && strings.TrimSpace(s.criteria.Query) == query {
		s.criteria.Place = resolved
	}
	if err := s.wizard.Submit(ctx, s.criteria); err != nil {
		return entities.SearchCriteria{}, err
	}

	// History keeps what the user typed; a resolved match only supplies coordinates.
	label := strings.TrimSpace(s.criteria.Query)
	if label == "" {
		label = s.criteria.PlaceLabel()
	}
	s.history.RecordSearch(ctx, entities.RecentSearchEntry{
		Query:    label,
		Category: s.criteria.Category,
		Date:     s.criteria.Date,
		RadiusKm: s.criteria.RadiusKm,
	})
	log.Debug().Str("session_id", s.id).Str("place", s.criteria.PlaceLabel()).Bool("resolved", s.criteria.Place != nil).Msg("Search submitted")
	return s.criteria, nil
}

// Reset restores default criteria and returns to the first step.
func (s *SearchSession) Reset(ctx context.Context) {
	s.lookup.Cancel(s.suggestField())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.criteria = s.opts.defaultCriteria()
	s.clearSuggestionsLocked()
	s.wizard.Reset(ctx)
}

// Criteria returns a snapshot of the current criteria
func (s *SearchSession) Criteria() entities.SearchCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Step returns the current wizard step
func (s *SearchSession) Step() WizardStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Step()
}

// Results runs the filter pipeline over the catalog with the current criteria.
func (s *SearchSession) Results(ctx context.Context) []ListingResult {
	listings := s.catalog.Load(ctx)

	s.mu.Lock()
	s.touchLocked()
	criteria := s.criteria
	s.mu.Unlock()

	return ApplyFiltersWithDistance(listings, criteria)
}

// State returns a snapshot for display. Recent entries are only included on
// the first step, where they are offered.
func (s *SearchSession) State(ctx context.Context) SessionState {
	s.mu.Lock()
	state := SessionState{
		ID:            s.id,
		Step:          s.wizard.Step(),
		Gated:         s.wizard.Gated(),
		VisibleFields: VisibleFields(s.wizard.Step()),
		Criteria:      s.criteria,
		Suggestions:   append([]entities.PlaceCandidate{}, s.suggestions...),
		CatalogSource: s.catalog.Source(),
	}
	s.mu.Unlock()

	if state.Step == StepLocation {
		state.RecentSearches = s.history.RecentSearches(ctx)
		state.RecentLocations = s.history.RecentLocations(ctx)
	}
	return state
}

// Close stops pending suggestion lookups.
func (s *SearchSession) Close() {
	s.lookup.Cancel(s.suggestField())
}

// LastActive returns when the session was last used
func (s *SearchSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *SearchSession) touchLocked() {
	s.lastActive = time.Now()
}

func (s *SearchSession) clearSuggestionsLocked() {
	s.suggestionGen++
	s.suggestions = []entities.PlaceCandidate{}
}
