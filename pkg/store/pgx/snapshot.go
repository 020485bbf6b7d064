package pgx

import (
	"context"
	"errors"
	"fmt"

	"raven/pkg/graph"
	"raven/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ErrGraphNotFound indicates that no persisted snapshot exists for the
// requested graph id.
var ErrGraphNotFound = errors.New("graph not found")

// SaveSnapshot replaces any persisted state for the graph id with the
// current contents of the store, in one transaction. Node rows record the
// enumeration position so a reload reconstructs the exact snapshot order.
func (s *SnapshotDBStorage) SaveSnapshot(ctx context.Context, graphID string, ks *store.KnowledgeStore) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO graphs (id, indexed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET indexed = $2, updated_at = now()
	`, graphID, ks.IndexReady())
	if err != nil {
		return fmt.Errorf("failed to upsert graph: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM graph_nodes WHERE graph_id = $1`, graphID)
	if err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	_, err = tx.Exec(ctx, `DELETE FROM graph_edges WHERE graph_id = $1`, graphID)
	if err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	batch := &pgx.Batch{}
	for position, node := range ks.Graph().Nodes() {
		var embedding any
		if node.Embedding != nil {
			embedding = pgvector.NewVector(node.Embedding)
		}
		batch.Queue(`
			INSERT INTO graph_nodes (graph_id, position, key, label, kind, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, graphID, position, node.Key, node.Label, string(node.Kind), embedding)
	}
	for position, edge := range ks.Graph().Edges() {
		batch.Queue(`
			INSERT INTO graph_edges (graph_id, position, source, target, relationship)
			VALUES ($1, $2, $3, $4, $5)
		`, graphID, position, edge.Source, edge.Target, edge.Relationship)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write snapshot rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds a knowledge store from persisted state. Nodes and
// edges are replayed in their recorded positions, so the restored graph
// enumerates identically to the one that was saved. When the snapshot was
// indexed, the vector index is restored from the persisted embeddings
// without re-encoding.
func (s *SnapshotDBStorage) LoadSnapshot(ctx context.Context, graphID string) (*store.KnowledgeStore, error) {
	var indexed bool
	err := s.conn.QueryRow(ctx, `SELECT indexed FROM graphs WHERE id = $1`, graphID).Scan(&indexed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	g := graph.New()
	keys := make([]string, 0)
	vectors := make([][]float32, 0)
	haveAllVectors := true

	rows, err := s.conn.Query(ctx, `
		SELECT key, label, kind, embedding
		FROM graph_nodes
		WHERE graph_id = $1
		ORDER BY position
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, label, kind string
			embedding        *pgvector.Vector
		)
		if err := rows.Scan(&key, &label, &kind, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		g.UpsertNode(key, label, graph.NodeKind(kind))
		keys = append(keys, key)
		if embedding != nil {
			vectors = append(vectors, embedding.Slice())
		} else {
			haveAllVectors = false
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node rows: %w", err)
	}
	rows.Close()

	edgeRows, err := s.conn.Query(ctx, `
		SELECT source, target, relationship
		FROM graph_edges
		WHERE graph_id = $1
		ORDER BY position
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var source, target, relationship string
		if err := edgeRows.Scan(&source, &target, &relationship); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		g.UpsertEdge(source, target, relationship)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edge rows: %w", err)
	}

	ks := store.NewKnowledgeStore(g, s.encoder)
	if indexed && haveAllVectors {
		if err := ks.RestoreIndex(keys, vectors); err != nil {
			return nil, fmt.Errorf("failed to restore index: %w", err)
		}
	}
	return ks, nil
}

// DeleteGraph removes all persisted state for the graph id. Node and edge
// rows cascade with the graph row.
func (s *SnapshotDBStorage) DeleteGraph(ctx context.Context, graphID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM graphs WHERE id = $1`, graphID)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	return nil
}

// GetGraphInfo returns summary data for a persisted graph.
func (s *SnapshotDBStorage) GetGraphInfo(ctx context.Context, graphID string) (store.GraphInfo, error) {
	info := store.GraphInfo{ID: graphID}
	err := s.conn.QueryRow(ctx, `
		SELECT
			g.indexed,
			g.updated_at,
			(SELECT count(*) FROM graph_nodes n WHERE n.graph_id = g.id),
			(SELECT count(*) FROM graph_edges e WHERE e.graph_id = g.id)
		FROM graphs g
		WHERE g.id = $1
	`, graphID).Scan(&info.Indexed, &info.UpdatedAt, &info.Nodes, &info.Edges)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.GraphInfo{}, ErrGraphNotFound
	}
	if err != nil {
		return store.GraphInfo{}, fmt.Errorf("failed to load graph info: %w", err)
	}
	return info, nil
}
