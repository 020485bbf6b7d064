// Package registry caches knowledge stores loaded from snapshot storage so
// the API server does not reload a graph from Postgres on every query.
package registry

import (
	"context"
	"sync"

	"raven/pkg/store"
)

// Stores is a lazy, invalidating cache of loaded knowledge stores keyed by
// graph id.
type Stores struct {
	storage store.SnapshotStorage

	mu    sync.Mutex
	cache map[string]*store.KnowledgeStore
}

// New creates a store registry over the given snapshot storage.
func New(storage store.SnapshotStorage) *Stores {
	return &Stores{
		storage: storage,
		cache:   make(map[string]*store.KnowledgeStore),
	}
}

// Get returns the cached store for the graph id, loading it from snapshot
// storage on first use.
func (s *Stores) Get(ctx context.Context, graphID string) (*store.KnowledgeStore, error) {
	s.mu.Lock()
	cached, ok := s.cache[graphID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	// Load outside the lock; a racing load of the same graph wastes one
	// read but stays correct since snapshots are immutable between builds.
	ks, err := s.storage.LoadSnapshot(ctx, graphID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[graphID] = ks
	s.mu.Unlock()
	return ks, nil
}

// Invalidate drops the cached store for the graph id, forcing the next Get
// to reload from snapshot storage. Called when a rebuild or delete is
// requested.
func (s *Stores) Invalidate(graphID string) {
	s.mu.Lock()
	delete(s.cache, graphID)
	s.mu.Unlock()
}
