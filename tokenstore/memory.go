package tokenstore

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps entries in process memory. It is mainly useful in tests
// and for sharing one namespace layout between several Stores.
type MemoryBackend struct {
	mu       sync.RWMutex
	services map[string]map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{services: make(map[string]map[string]string)}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, service string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries, ok := b.services[service]
	if !ok {
		return nil, nil
	}
	return maps.Clone(entries), nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, service string, entries map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services[service] = maps.Clone(entries)
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.services, service)
	return nil
}
