// Package memory stores cache documents in-memory for development and tests.
package memory

import (
	"context"
	"sync"
)

// Backend holds one cache document in memory.
type Backend struct {
	mu   sync.RWMutex
	data []byte
}

// New creates an empty in-memory document backend.
func New() *Backend {
	return &Backend{}
}

// Load returns the current document, nil when nothing was stored yet.
func (b *Backend) Load(_ context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Store replaces the document.
func (b *Backend) Store(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	return nil
}
