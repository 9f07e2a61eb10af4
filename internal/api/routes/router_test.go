package routes_test

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/adapters/providers/geolocation"
	"github.com/delivevent/marketplace/backend/internal/adapters/static"
	"github.com/delivevent/marketplace/backend/internal/adapters/storage"
	"github.com/delivevent/marketplace/backend/internal/api/handlers"
	"github.com/delivevent/marketplace/backend/internal/api/routes"
	"github.com/delivevent/marketplace/backend/internal/application/services"
	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	opts := services.DefaultSessionOptions()
	lookup := services.NewPlaceLookup(geolocation.NewMockPlaceProvider(), 5*time.Millisecond, services.DefaultSuggestLimit)
	catalog := services.NewListingCatalog(nil, "", static.NewDataset("", "", nil), 0, nil)
	backend := storage.NewMemoryStore()
	registry := services.NewSessionRegistry(lookup, catalog, func(id string) providers.KeyValueStore {
		return storage.NewNamespacedStore(backend, "session:"+id+":")
	}, opts, time.Hour)

	router := routes.NewRouter(
		handlers.NewSearchHandler(catalog, lookup, opts),
		handlers.NewPlacesHandler(lookup),
		handlers.NewSessionHandler(registry),
		nil,
		nil,
	)
	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(func() {
		server.Close()
		registry.Close()
		lookup.Close()
	})
	return server
}

func TestRouter_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_SearchIsCompressedWhenAccepted(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/listings/search?q=Marseille&radius=5", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	// A transport with compression disabled hands back the raw gzip stream.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "public, max-age=60, must-revalidate", resp.Header.Get("Cache-Control"))

	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	var body handlers.SearchResponse
	require.NoError(t, json.NewDecoder(gz).Decode(&body))

	ids := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		ids = append(ids, r.Listing.ID)
	}
	// Marseille itself, then the listing without usable coordinates.
	assert.Equal(t, []string{"demo-4", "demo-6"}, ids)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/sessions", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	var state services.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	req, err := http.NewRequest(http.MethodPatch, server.URL+"/api/sessions/"+state.ID+"/criteria", strings.NewReader(`{"category":"Lumière"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/sessions/" + state.ID + "/results")
	require.NoError(t, err)
	var results handlers.ResultsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	resp.Body.Close()
	assert.Equal(t, 2, results.Count)
	assert.Equal(t, services.SourceFallback, results.Source)

	req, err = http.NewRequest(http.MethodDelete, server.URL+"/api/sessions/"+state.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/sessions/" + state.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
