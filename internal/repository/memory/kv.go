// Package memory provides an in-memory key-value store for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"

	"github.com/msomdec/lifelink/internal/domain"
)

var _ domain.KeyValueStore = (*KVStore)(nil)

// KVStore is a mutex-guarded map. Its zero value is not usable; call NewKVStore.
type KVStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{entries: make(map[string]string)}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored keys.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
