package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
	"github.com/delivevent/marketplace/backend/internal/infrastructure/clients/sqlite"
)

func exerciseStore(t *testing.T, store providers.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "recent_searches")
	assert.ErrorIs(t, err, providers.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "recent_searches", `[{"q":"Paris"}]`))
	value, err := store.Get(ctx, "recent_searches")
	require.NoError(t, err)
	assert.Equal(t, `[{"q":"Paris"}]`, value)

	require.NoError(t, store.Set(ctx, "recent_searches", `[]`))
	value, err = store.Get(ctx, "recent_searches")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, store.Remove(ctx, "recent_searches"))
	_, err = store.Get(ctx, "recent_searches")
	assert.ErrorIs(t, err, providers.ErrKeyNotFound)

	assert.NoError(t, store.Remove(ctx, "never_set"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	client, err := sqlite.NewClient(ctx, ":memory:")
	require.NoError(t, err)
	defer client.Close()

	store, err := NewSQLiteStore(ctx, client)
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/history.db"

	client, err := sqlite.NewClient(ctx, path)
	require.NoError(t, err)
	store, err := NewSQLiteStore(ctx, client)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "search_wizard_step", "2"))
	require.NoError(t, client.Close())

	client, err = sqlite.NewClient(ctx, path)
	require.NoError(t, err)
	defer client.Close()
	store, err = NewSQLiteStore(ctx, client)
	require.NoError(t, err)

	value, err := store.Get(ctx, "search_wizard_step")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestNamespacedStore_IsolatesPrefixes(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	alice := NewNamespacedStore(shared, "search:alice:")
	bob := NewNamespacedStore(shared, "search:bob:")

	exerciseStore(t, alice)

	require.NoError(t, alice.Set(ctx, "recent_locations", `["Lyon"]`))
	_, err := bob.Get(ctx, "recent_locations")
	assert.ErrorIs(t, err, providers.ErrKeyNotFound)

	raw, err := shared.Get(ctx, "search:alice:recent_locations")
	require.NoError(t, err)
	assert.Equal(t, `["Lyon"]`, raw)
}
