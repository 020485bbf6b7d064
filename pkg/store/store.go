// Package store composes the knowledge graph and the vector index into one
// queryable unit: structural traversal over relationships and similarity
// search over node label embeddings.
package store

import (
	"context"
	"errors"
	"fmt"

	"raven/pkg/ai"
	"raven/pkg/graph"
	"raven/pkg/logger"
	"raven/pkg/vecindex"
)

// Sentinel errors for knowledge store operations.
var (
	// ErrIndexNotReady indicates a similarity query before a successful
	// index build.
	ErrIndexNotReady = errors.New("embedding index not ready")

	// ErrDimensionMismatch indicates that the encoder produced vectors of a
	// width the index cannot accept. This is a configuration error and is
	// not recovered internally.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Snapshot is the fixed node enumeration recorded when the embedding index
// was built. It is the sole mechanism linking index positions back to node
// identities: position i is the i-th key of the snapshot.
type Snapshot struct {
	keys []string
}

// Len returns the number of nodes in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Key returns the node key at the given index position.
func (s *Snapshot) Key(pos int) (string, bool) {
	if pos < 0 || pos >= len(s.keys) {
		return "", false
	}
	return s.keys[pos], true
}

// Keys returns a copy of the snapshot's ordered node keys.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// KnowledgeStore pairs a knowledge graph with an embedding index over its
// node labels.
//
// The store is built by a single writer; once BuildIndex has returned it is
// safe for concurrent readers, provided the graph is not mutated afterwards.
// Adding or removing nodes invalidates the index-position alignment; the
// only supported recovery is a full BuildIndex rebuild.
type KnowledgeStore struct {
	graph   *graph.Graph
	encoder ai.TextEncoder

	index    *vecindex.Index
	snapshot *Snapshot
}

// NewKnowledgeStore creates a store over the given graph. The encoder is
// used for index builds and text similarity queries.
func NewKnowledgeStore(g *graph.Graph, encoder ai.TextEncoder) *KnowledgeStore {
	return &KnowledgeStore{
		graph:   g,
		encoder: encoder,
	}
}

// Graph returns the underlying knowledge graph.
func (s *KnowledgeStore) Graph() *graph.Graph {
	return s.graph
}

// IndexReady reports whether a similarity index has been built.
func (s *KnowledgeStore) IndexReady() bool {
	return s.index != nil
}

// Snapshot returns the node enumeration recorded at the last index build,
// or nil if no index has been built.
func (s *KnowledgeStore) Snapshot() *Snapshot {
	return s.snapshot
}

// BuildIndex encodes every node label into a vector, normalizes the batch,
// and populates a fresh flat index in snapshot order. Each vector is also
// written back onto its node. An empty graph yields an empty snapshot and
// an empty index without error.
//
// The snapshot taken here is what maps index positions back to nodes; any
// graph mutation after this call stales the index until the next BuildIndex.
func (s *KnowledgeStore) BuildIndex(ctx context.Context) error {
	dim := ai.EmbeddingDimensions()

	nodes := s.graph.Nodes()
	keys := make([]string, len(nodes))
	texts := make([][]byte, len(nodes))
	for i, node := range nodes {
		keys[i] = node.Key
		label := node.Label
		if label == "" {
			label = "Unknown"
		}
		texts[i] = []byte(label)
	}

	index := vecindex.New(dim)

	if len(nodes) > 0 {
		vectors, err := s.encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to encode node labels: %w", err)
		}
		if len(vectors) != len(nodes) {
			return fmt.Errorf("encoder returned %d vectors for %d nodes", len(vectors), len(nodes))
		}

		vecindex.NormalizeBatchL2(vectors)

		if err := index.Add(vectors); err != nil {
			return fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
		}

		for i, node := range nodes {
			node.Embedding = vectors[i]
		}
	}

	s.index = index
	s.snapshot = &Snapshot{keys: keys}

	logger.Info("Embedding index built", "nodes", len(nodes), "dimensions", dim)
	return nil
}

// encode runs the label batch through the encoder. Batches above the
// configured AI_EMBED_BATCH limit are split into chunks and fanned out when
// the encoder supports concurrent chunked requests.
func (s *KnowledgeStore) encode(ctx context.Context, texts [][]byte) ([][]float32, error) {
	batch := ai.EmbeddingBatchSize()
	if ce, ok := s.encoder.(ai.ChunkedTextEncoder); ok && len(texts) > batch {
		return ce.GenerateEmbeddingsChunks(ctx, ai.ChunkInputs(texts, batch))
	}
	return s.encoder.GenerateEmbeddings(ctx, texts)
}

// RestoreIndex rebuilds the index from previously persisted vectors without
// re-encoding. keys must enumerate the persisted snapshot order and vectors
// must align with it 1:1; the vectors are assumed to be normalized already.
// Vectors are written back onto the matching graph nodes where present.
func (s *KnowledgeStore) RestoreIndex(keys []string, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("snapshot size mismatch: %d keys, %d vectors", len(keys), len(vectors))
	}

	index := vecindex.New(ai.EmbeddingDimensions())
	if err := index.Add(vectors); err != nil {
		return fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	for i, key := range keys {
		if node, ok := s.graph.Node(key); ok {
			node.Embedding = vectors[i]
		}
	}

	s.index = index
	s.snapshot = &Snapshot{keys: append([]string(nil), keys...)}
	return nil
}
