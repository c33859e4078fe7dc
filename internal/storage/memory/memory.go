// Package memory keeps session state in process memory. State is lost on
// restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/kart-pricing/internal/storage"
)

// Store holds the values of all sessions.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: map[string]map[string][]byte{}}
}

// Session returns the key/value view of session id.
func (s *Store) Session(id string) storage.KV {
	return sessionKV{store: s, id: id}
}

type sessionKV struct {
	store *Store
	id    string
}

func (kv sessionKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	kv.store.mu.RLock()
	defer kv.store.mu.RUnlock()

	v, ok := kv.store.data[kv.id][key]
	return slices.Clone(v), ok, nil
}

func (kv sessionKV) Set(_ context.Context, key string, value []byte) error {
	kv.store.mu.Lock()
	defer kv.store.mu.Unlock()

	m, ok := kv.store.data[kv.id]
	if !ok {
		m = map[string][]byte{}
		kv.store.data[kv.id] = m
	}
	m[key] = slices.Clone(value)
	return nil
}

func (kv sessionKV) Delete(_ context.Context, key string) error {
	kv.store.mu.Lock()
	defer kv.store.mu.Unlock()

	m, ok := kv.store.data[kv.id]
	if !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		delete(kv.store.data, kv.id)
	}
	return nil
}
