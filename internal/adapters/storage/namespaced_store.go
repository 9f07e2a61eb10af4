package storage

import (
	"context"

	"github.com/delivevent/marketplace/backend/internal/domain/providers"
)

// NamespacedStore prefixes every key so several users can share one backend.
type NamespacedStore struct {
	inner  providers.KeyValueStore
	prefix string
}

var _ providers.KeyValueStore = (*NamespacedStore)(nil)

// NewNamespacedStore scopes inner to keys starting with prefix
func NewNamespacedStore(inner providers.KeyValueStore, prefix string) *NamespacedStore {
	return &NamespacedStore{inner: inner, prefix: prefix}
}

// Get reads key under the prefix
func (s *NamespacedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

// Set writes key under the prefix
func (s *NamespacedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

// Remove deletes key under the prefix
func (s *NamespacedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, s.prefix+key)
}
