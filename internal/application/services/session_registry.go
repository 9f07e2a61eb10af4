package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

// ErrSessionNotFound is returned for unknown or evicted session IDs.
var ErrSessionNotFound = errors.New("search session not found")

// StoreFactory returns the key/value store holding one session's history.
type StoreFactory func(sessionID string) providers.KeyValueStore

// SessionRegistry owns the live search sessions of the process.
type SessionRegistry struct {
	lookup  *PlaceLookup
	catalog *ListingCatalog
	stores  StoreFactory
	opts    SessionOptions
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*SearchSession
}

// NewSessionRegistry creates a registry. Sessions idle longer than idleTTL are evicted by Run.
func NewSessionRegistry(lookup *PlaceLookup, catalog *ListingCatalog, stores StoreFactory, opts SessionOptions, idleTTL time.Duration) *SessionRegistry {
	return &SessionRegistry{
		lookup:   lookup,
		catalog:  catalog,
		stores:   stores,
		opts:     opts,
		idleTTL:  idleTTL,
		sessions: make(map[string]*SearchSession),
	}
}

// Create starts a session. A valid resumeID reuses that ID, and with it any
// history persisted under it; otherwise a new ID is generated.
func (r *SessionRegistry) Create(ctx context.Context, resumeID string) *SearchSession {
	id := uuid.New().String()
	if parsed, err := uuid.Parse(resumeID); err == nil {
		id = parsed.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		return existing
	}
	session := NewSearchSession(ctx, id, r.lookup, r.catalog, NewSearchHistory(r.stores(id)), r.opts)
	r.sessions[id] = session

	log.Debug().Str("session_id", id).Int("sessions", len(r.sessions)).Msg("Search session created")
	return session
}

// Get returns the live session with id or ErrSessionNotFound.
func (r *SessionRegistry) Get(id string) (*SearchSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete closes and forgets a session. Its persisted history is kept.
func (r *SessionRegistry) Delete(id string) bool {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		session.Close()
	}
	return ok
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle drops sessions inactive since before now minus the idle TTL.
func (r *SessionRegistry) EvictIdle(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []*SearchSession
	for id, session := range r.sessions {
		if session.LastActive().Before(cutoff) {
			evicted = append(evicted, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range evicted {
		session.Close()
	}
	if len(evicted) > 0 {
		log.Info().Int("evicted", len(evicted)).Msg("Evicted idle search sessions")
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.EvictIdle(now)
		}
	}
}

// Close closes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*SearchSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
