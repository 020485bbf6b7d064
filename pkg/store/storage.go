package store

import (
	"context"
	"time"
)

// GraphInfo summarizes a persisted graph snapshot.
type GraphInfo struct {
	ID        string    `json:"id"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Indexed   bool      `json:"indexed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStorage persists and restores knowledge store snapshots. A
// snapshot captures the graph structure, the node enumeration order, and the
// node embeddings, so a restore can rebuild the vector index without
// re-encoding.
type SnapshotStorage interface {
	// SaveSnapshot replaces any persisted state for the graph id with the
	// current contents of the store.
	SaveSnapshot(ctx context.Context, graphID string, ks *KnowledgeStore) error

	// LoadSnapshot rebuilds a knowledge store from persisted state. Returns
	// the store with its index restored when the snapshot was indexed.
	LoadSnapshot(ctx context.Context, graphID string) (*KnowledgeStore, error)

	// DeleteGraph removes all persisted state for the graph id.
	DeleteGraph(ctx context.Context, graphID string) error

	// GetGraphInfo returns summary data for a persisted graph.
	GetGraphInfo(ctx context.Context, graphID string) (GraphInfo, error)
}
