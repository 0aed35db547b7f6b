package assignment

import (
	"context"
	"sync"
)

// CursorStore hands out rotation turns for round-robin assignment. Next is
// atomic: no two callers, in this process or another engine instance, ever
// receive the same turn, so the rotation survives restarts and stays fair
// across instances.
type CursorStore interface {
	Next(ctx context.Context, key string) (int64, error)
}

// MemoryCursorStore is a process-local cursor store.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]int64
}

// NewMemoryCursorStore builds an empty in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]int64)}
}

func (s *MemoryCursorStore) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key]++
	return s.cursors[key], nil
}
