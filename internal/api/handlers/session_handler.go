package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
)

type sessionRegistry interface {
	Create(ctx context.Context, resumeID string) *services.SearchSession
	Get(id string) (*services.SearchSession, error)
	Delete(id string) bool
}

// SessionHandler drives stateful search sessions: the three-step wizard,
// debounced place suggestions, search history and the listing draft.
type SessionHandler struct {
	registry sessionRegistry
}

// NewSessionHandler creates a session handler
func NewSessionHandler(registry sessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

type createSessionRequest struct {
	ResumeID string `json:"resume_id"`
	Category string `json:"category"`
}

type queryRequest struct {
	Text string `json:"text"`
}

// ResultsResponse lists filtered listings for a session.
type ResultsResponse struct {
	Results []services.ListingResult `json:"results"`
	Count   int                      `json:"count"`
	Source  string                   `json:"source"`
}

// SubmitResponse is returned once a search is submitted.
type SubmitResponse struct {
	State services.SessionState `json:"state"`
	ResultsResponse
}

// HistoryResponse holds the recent entries offered on the first step.
type HistoryResponse struct {
	Searches  []entities.RecentSearchEntry `json:"searches"`
	Locations []string                     `json:"locations"`
}

// DraftResponse holds the pending draft, if any, and the form defaults.
type DraftResponse struct {
	Draft    *entities.ListingDraft    `json:"draft"`
	Defaults entities.LastUsedDefaults `json:"defaults"`
}

// Create handles POST /api/sessions. A resume_id from an earlier visit
// restores that visitor's history and wizard step.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var category *string
	if strings.TrimSpace(req.Category) != "" {
		if _, ok := entities.ParseCategory(req.Category); !ok {
			respondWithError(w, http.StatusUnprocessableEntity, "unknown category: "+req.Category)
			return
		}
		category = &req.Category
	}

	session := h.registry.Create(r.Context(), req.ResumeID)
	if category != nil {
		if _, err := session.UpdateCriteria(services.CriteriaPatch{Category: category}); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}
	respondWithJSON(w, http.StatusCreated, session.State(r.Context()))
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// Delete handles DELETE /api/sessions/{id}. Persisted history is kept.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Delete(r.PathValue("id")) {
		respondWithError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetQuery handles PUT /api/sessions/{id}/query. Suggestions are looked up
// in the background and show up in later state reads.
func (h *SessionHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	session.SetQuery(r.Context(), req.Text)
	respondWithJSON(w, http.StatusAccepted, session.State(r.Context()))
}

// SelectSuggestion handles POST /api/sessions/{id}/suggestions/{index}/select.
func (h *SessionHandler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid suggestion index")
		return
	}
	if _, err := session.SelectSuggestion(index); err != nil {
		if errors.Is(err, services.ErrSuggestionNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// ApplyRecentSearch handles POST /api/sessions/{id}/history/searches/{index}/apply.
func (h *SessionHandler) ApplyRecentSearch(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	searches := session.History().RecentSearches(r.Context())
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= len(searches) {
		respondWithError(w, http.StatusNotFound, "recent search not found")
		return
	}
	session.ApplyRecentSearch(searches[index])
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// ApplyRecentLocation handles POST /api/sessions/{id}/history/locations/{index}/apply.
func (h *SessionHandler) ApplyRecentLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	locations := session.History().RecentLocations(r.Context())
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= len(locations) {
		respondWithError(w, http.StatusNotFound, "recent location not found")
		return
	}
	session.ApplyRecentLocation(locations[index])
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// UpdateCriteria handles PATCH /api/sessions/{id}/criteria.
func (h *SessionHandler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch services.CriteriaPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if _, err := session.UpdateCriteria(patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// Advance handles POST /api/sessions/{id}/advance.
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Advance(r.Context()); err != nil {
		h.respondWithTransitionError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// Retreat handles POST /api/sessions/{id}/retreat.
func (h *SessionHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Retreat(r.Context())
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// Submit handles POST /api/sessions/{id}/submit and returns the results with the new state.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := session.Submit(r.Context()); err != nil {
		h.respondWithTransitionError(w, r, err)
		return
	}
	results := session.Results(r.Context())
	state := session.State(r.Context())
	respondWithJSON(w, http.StatusOK, SubmitResponse{
		State: state,
		ResultsResponse: ResultsResponse{
			Results: results,
			Count:   len(results),
			Source:  state.CatalogSource,
		},
	})
}

// Reset handles POST /api/sessions/{id}/reset.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Reset(r.Context())
	respondWithJSON(w, http.StatusOK, session.State(r.Context()))
}

// Results handles GET /api/sessions/{id}/results.
func (h *SessionHandler) Results(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	results := session.Results(r.Context())
	respondWithJSON(w, http.StatusOK, ResultsResponse{
		Results: results,
		Count:   len(results),
		Source:  session.State(r.Context()).CatalogSource,
	})
}

// History handles GET /api/sessions/{id}/history.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	history := session.History()
	respondWithJSON(w, http.StatusOK, HistoryResponse{
		Searches:  history.RecentSearches(r.Context()),
		Locations: history.RecentLocations(r.Context()),
	})
}

// ClearHistory handles DELETE /api/sessions/{id}/history.
func (h *SessionHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	// scope=all also forgets recent locations and the saved wizard step.
	if r.URL.Query().Get("scope") == "all" {
		session.History().Clear(r.Context())
	} else {
		session.History().ClearSearches(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// Draft handles GET /api/sessions/{id}/draft.
func (h *SessionHandler) Draft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	history := session.History()
	resp := DraftResponse{Defaults: history.LastUsedDefaults(r.Context())}
	if draft, found := history.PendingDraft(r.Context()); found {
		resp.Draft = &draft
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// SaveDraft handles PUT /api/sessions/{id}/draft.
func (h *SessionHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var draft entities.ListingDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	session.History().SaveDraft(r.Context(), draft)
	w.WriteHeader(http.StatusNoContent)
}

// DiscardDraft handles DELETE /api/sessions/{id}/draft.
func (h *SessionHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.History().DiscardDraft(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// CompleteDraft handles POST /api/sessions/{id}/draft/complete. The submitted
// form becomes the defaults for the next listing.
func (h *SessionHandler) CompleteDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var draft entities.ListingDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	history := session.History()
	history.CompleteDraft(r.Context(), draft)
	respondWithJSON(w, http.StatusOK, DraftResponse{Defaults: history.LastUsedDefaults(r.Context())})
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.SearchSession, bool) {
	id := r.PathValue("id")
	session, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			respondWithError(w, http.StatusNotFound, "session not found")
			return nil, false
		}
		respondWithAppError(w, r, err)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) respondWithTransitionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrPlaceRequired) {
		observability.LoggerFromContext(r.Context()).Debug().Str("session_id", r.PathValue("id")).Msg("wizard transition refused")
		respondWithHint(w, http.StatusUnprocessableEntity, "place required", err.Error())
		return
	}
	respondWithAppError(w, r, err)
}
