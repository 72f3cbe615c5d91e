package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in process. Used for local runs without a bucket and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	baseURL   string
	objects   map[string][]byte
	mimeTypes map[string]string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://media"
	}
	return &MemoryStore{
		baseURL:   baseURL,
		objects:   map[string][]byte{},
		mimeTypes: map[string]string{},
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(body))
	copy(copied, body)
	m.objects[key] = copied
	m.mimeTypes[key] = contentType
	return publicURL(m.baseURL, key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.objects, key)
		delete(m.mimeTypes, key)
	}
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	return body, m.mimeTypes[key], ok
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ ObjectStore = (*MemoryStore)(nil)
