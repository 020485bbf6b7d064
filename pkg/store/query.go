package store

import (
	"context"
	"fmt"

	"raven/pkg/graph"
	"raven/pkg/vecindex"
)

// NodeNeighbors is the result of a structural query: the node itself plus
// its direct successors and predecessors with relationship labels.
type NodeNeighbors struct {
	Node         *graph.Node      `json:"node,omitempty"`
	Successors   []graph.Neighbor `json:"successors"`
	Predecessors []graph.Neighbor `json:"predecessors"`
}

// Match is one similarity hit: the matched node, its snapshot position, and
// the squared Euclidean distance to the query vector.
type Match struct {
	Node     *graph.Node `json:"node"`
	Position int         `json:"position"`
	Distance float32     `json:"distance"`
}

// Neighbors returns the direct successors and predecessors of the given node
// key. An unknown key yields empty neighbor lists and a nil Node, not an
// error.
func (s *KnowledgeStore) Neighbors(key string) NodeNeighbors {
	node, _ := s.graph.Node(key)
	return NodeNeighbors{
		Node:         node,
		Successors:   s.graph.Successors(key),
		Predecessors: s.graph.Predecessors(key),
	}
}

// Similar encodes the query text the same way the index build encoded node
// labels and returns the k nearest nodes. Returns ErrIndexNotReady if no
// index has been built.
func (s *KnowledgeStore) Similar(ctx context.Context, text string, k int) ([]Match, error) {
	if !s.IndexReady() {
		return nil, ErrIndexNotReady
	}

	vec, err := s.encoder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	vecindex.NormalizeL2(vec)

	return s.SimilarByVector(vec, k)
}

// SimilarByVector returns the k nearest nodes to a pre-computed query
// vector. The vector must already be normalized like the indexed vectors.
// Returns ErrIndexNotReady if no index has been built.
func (s *KnowledgeStore) SimilarByVector(vec []float32, k int) ([]Match, error) {
	if !s.IndexReady() {
		return nil, ErrIndexNotReady
	}

	results, err := s.index.Search(vec, k)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		key, ok := s.snapshot.Key(result.Position)
		if !ok {
			return nil, fmt.Errorf("index position %d outside snapshot", result.Position)
		}
		node, ok := s.graph.Node(key)
		if !ok {
			return nil, fmt.Errorf("snapshot key %q missing from graph, index is stale", key)
		}
		matches = append(matches, Match{
			Node:     node,
			Position: result.Position,
			Distance: result.Distance,
		})
	}
	return matches, nil
}
