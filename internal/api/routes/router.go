package routes

import (
	"net/http"

	"github.com/delivevent/marketplace/backend/internal/api/handlers"
	"github.com/delivevent/marketplace/backend/internal/api/middleware"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	searchHandler  *handlers.SearchHandler
	placesHandler  *handlers.PlacesHandler
	sessionHandler *handlers.SessionHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
func NewRouter(
	searchHandler *handlers.SearchHandler,
	placesHandler *handlers.PlacesHandler,
	sessionHandler *handlers.SessionHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		searchHandler:   searchHandler,
		placesHandler:   placesHandler,
		sessionHandler:  sessionHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// WithAllowedOrigins restricts CORS to origins. Without it any origin is allowed.
func (r *Router) WithAllowedOrigins(origins []string) *Router {
	r.allowedOrigins = origins
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Stateless search
	r.mux.HandleFunc("GET /api/listings/search", r.searchHandler.Search)
	r.mux.HandleFunc("GET /api/places/suggest", r.placesHandler.Suggest)
	r.mux.HandleFunc("GET /api/places/resolve", r.placesHandler.Resolve)

	// Search sessions
	s := r.sessionHandler
	r.mux.HandleFunc("POST /api/sessions", s.Create)
	r.mux.HandleFunc("GET /api/sessions/{id}", s.Get)
	r.mux.HandleFunc("DELETE /api/sessions/{id}", s.Delete)
	r.mux.HandleFunc("PUT /api/sessions/{id}/query", s.SetQuery)
	r.mux.HandleFunc("POST /api/sessions/{id}/suggestions/{index}/select", s.SelectSuggestion)
	r.mux.HandleFunc("PATCH /api/sessions/{id}/criteria", s.UpdateCriteria)
	r.mux.HandleFunc("POST /api/sessions/{id}/advance", s.Advance)
	r.mux.HandleFunc("POST /api/sessions/{id}/retreat", s.Retreat)
	r.mux.HandleFunc("POST /api/sessions/{id}/submit", s.Submit)
	r.mux.HandleFunc("POST /api/sessions/{id}/reset", s.Reset)
	r.mux.HandleFunc("GET /api/sessions/{id}/results", s.Results)

	// History and listing draft
	r.mux.HandleFunc("GET /api/sessions/{id}/history", s.History)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/history", s.ClearHistory)
	r.mux.HandleFunc("POST /api/sessions/{id}/history/searches/{index}/apply", s.ApplyRecentSearch)
	r.mux.HandleFunc("POST /api/sessions/{id}/history/locations/{index}/apply", s.ApplyRecentLocation)
	r.mux.HandleFunc("GET /api/sessions/{id}/draft", s.Draft)
	r.mux.HandleFunc("PUT /api/sessions/{id}/draft", s.SaveDraft)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/draft", s.DiscardDraft)
	r.mux.HandleFunc("POST /api/sessions/{id}/draft/complete", s.CompleteDraft)

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability sits directly on the mux so it can read the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
