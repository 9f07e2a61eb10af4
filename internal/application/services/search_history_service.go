package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

// Storage keys
const (
	KeyRecentSearches   = "recent_searches"
	KeyRecentLocations  = "recent_locations"
	KeyWizardStep       = "search_wizard_step"
	KeyLastCategory     = "last_category"
	KeyLastLocationName = "last_location_name"
	KeyLastPhone        = "last_phone"
	KeyListingDraft     = "draft_create_listing_v1"
)

// MaxRecentEntries caps both recent lists.
const MaxRecentEntries = 5

// SearchHistory remembers a user's recent searches, locations, wizard step
// and listing draft in a key/value store.
//
// Every operation is best effort. Storage and decoding failures are logged
// and swallowed; reads then return empty values.
type SearchHistory struct {
	store providers.KeyValueStore
	now   func() time.Time
}

// NewSearchHistory creates a history backed by store
func NewSearchHistory(store providers.KeyValueStore) *SearchHistory {
	return &SearchHistory{store: store, now: time.Now}
}

var _ StepStore = (*SearchHistory)(nil)

// RecordSearch puts entry first in the recent searches, dropping an older
// entry for the same search, and remembers its query as a recent location.
func (h *SearchHistory) RecordSearch(ctx context.Context, entry entities.RecentSearchEntry) []entities.RecentSearchEntry {
	entry.Query = strings.TrimSpace(entry.Query)
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = h.now().UTC()
	}

	previous := h.RecentSearches(ctx)
	next := make([]entities.RecentSearchEntry, 0, MaxRecentEntries)
	next = append(next, entry)
	for _, e := range previous {
		if len(next) == MaxRecentEntries {
			break
		}
		if !e.SameSearch(entry) {
			next = append(next, e)
		}
	}
	h.writeJSON(ctx, KeyRecentSearches, next)

	if entry.Query != "" {
		h.RecordLocation(ctx, entry.Query)
	}
	return next
}

// RecentSearches returns the remembered searches, newest first.
func (h *SearchHistory) RecentSearches(ctx context.Context) []entities.RecentSearchEntry {
	var entries []entities.RecentSearchEntry
	if !h.readJSON(ctx, KeyRecentSearches, &entries) || entries == nil {
		return []entities.RecentSearchEntry{}
	}
	if len(entries) > MaxRecentEntries {
		entries = entries[:MaxRecentEntries]
	}
	return entries
}

// RecordLocation puts name first in the recent locations.
func (h *SearchHistory) RecordLocation(ctx context.Context, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return h.RecentLocations(ctx)
	}

	next := make([]string, 0, MaxRecentEntries)
	next = append(next, name)
	for _, l := range h.RecentLocations(ctx) {
		if len(next) == MaxRecentEntries {
			break
		}
		if l != name {
			next = append(next, l)
		}
	}
	h.writeJSON(ctx, KeyRecentLocations, next)
	return next
}

// RecentLocations returns the remembered location names, newest first.
func (h *SearchHistory) RecentLocations(ctx context.Context) []string {
	var locations []string
	if !h.readJSON(ctx, KeyRecentLocations, &locations) || locations == nil {
		return []string{}
	}
	if len(locations) > MaxRecentEntries {
		locations = locations[:MaxRecentEntries]
	}
	return locations
}

// ClearSearches forgets recent searches only.
func (h *SearchHistory) ClearSearches(ctx context.Context) {
	h.remove(ctx, KeyRecentSearches)
}

// Clear forgets recent searches, recent locations and the wizard step.
// Drafts and last-used defaults are kept.
func (h *SearchHistory) Clear(ctx context.Context) {
	for _, key := range []string{KeyRecentSearches, KeyRecentLocations, KeyWizardStep} {
		h.remove(ctx, key)
	}
}

// SaveStep persists the wizard step
func (h *SearchHistory) SaveStep(ctx context.Context, step int) {
	h.set(ctx, KeyWizardStep, strconv.Itoa(step))
}

// LoadStep returns the persisted wizard step and whether one was stored.
func (h *SearchHistory) LoadStep(ctx context.Context) (int, bool) {
	raw, ok := h.get(ctx, KeyWizardStep)
	if !ok {
		return 0, false
	}
	step, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Debug().Str("value", raw).Msg("Ignoring malformed wizard step")
		return 0, false
	}
	return step, true
}

// SaveDraft autosaves the listing form. An empty draft removes the saved one.
func (h *SearchHistory) SaveDraft(ctx context.Context, draft entities.ListingDraft) {
	if draft.IsEmpty() {
		h.remove(ctx, KeyListingDraft)
		return
	}
	h.writeJSON(ctx, KeyListingDraft, draft)
}

// PendingDraft returns the saved draft the user may resume.
func (h *SearchHistory) PendingDraft(ctx context.Context) (entities.ListingDraft, bool) {
	var draft entities.ListingDraft
	if !h.readJSON(ctx, KeyListingDraft, &draft) || draft.IsEmpty() {
		return entities.ListingDraft{}, false
	}
	return draft, true
}

// DiscardDraft removes the listing draft
func (h *SearchHistory) DiscardDraft(ctx context.Context) {
	h.remove(ctx, KeyListingDraft)
}

// CompleteDraft records the submitted draft's category, location and phone as
// last-used defaults, then drops the draft.
func (h *SearchHistory) CompleteDraft(ctx context.Context, draft entities.ListingDraft) {
	if v := strings.TrimSpace(draft.Category); v != "" {
		h.set(ctx, KeyLastCategory, v)
	}
	if v := strings.TrimSpace(draft.Location); v != "" {
		h.set(ctx, KeyLastLocationName, v)
	}
	if v := strings.TrimSpace(draft.Phone); v != "" {
		h.set(ctx, KeyLastPhone, v)
	}
	h.remove(ctx, KeyListingDraft)
}

// LastUsedDefaults returns the values remembered from the last completed draft.
func (h *SearchHistory) LastUsedDefaults(ctx context.Context) entities.LastUsedDefaults {
	category, _ := h.get(ctx, KeyLastCategory)
	location, _ := h.get(ctx, KeyLastLocationName)
	phone, _ := h.get(ctx, KeyLastPhone)
	return entities.LastUsedDefaults{Category: category, LocationName: location, Phone: phone}
}

func (h *SearchHistory) get(ctx context.Context, key string) (string, bool) {
	value, err := h.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrKeyNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read search history")
		}
		return "", false
	}
	return value, true
}

func (h *SearchHistory) set(ctx context.Context, key, value string) {
	if err := h.store.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to write search history")
	}
}

func (h *SearchHistory) remove(ctx context.Context, key string) {
	if err := h.store.Remove(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove search history")
	}
}

func (h *SearchHistory) readJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := h.get(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Ignoring malformed search history")
		return false
	}
	return true
}

func (h *SearchHistory) writeJSON(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode search history")
		return
	}
	h.set(ctx, key, string(payload))
}
