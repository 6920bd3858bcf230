package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs tests and the
// dry-run deployment mode; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload marshals doc and stores it under key, replacing any prior object.
func (m *MemoryStore) Upload(_ context.Context, key string, doc any) (string, error) {
	if key == "" {
		return "", fmt.Errorf("store: key is required")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("store: marshal %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "mem://" + key, nil
}

// UploadBytes stores a pre-rendered object as-is.
func (m *MemoryStore) UploadBytes(_ context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("store: key is required")
	}
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return "mem://" + key, nil
}

// Download unmarshals the object at key into out.
func (m *MemoryStore) Download(_ context.Context, key string, out any) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

// Keys returns every stored key in sorted order. Tests use it to assert on
// staged and orphaned objects.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
