// Package vecindex provides a flat nearest-neighbor index over dense float32
// vectors. Vectors are appended in bulk and addressed by insertion position;
// the index never reorders or deletes entries, so position i always refers to
// the i-th vector ever added. Search is an exact scan under squared Euclidean
// distance.
//
// The index is built by a single writer and read afterwards; it does not
// synchronize concurrent mutation.
package vecindex

import (
	"container/heap"
	"fmt"
)

// Index is a flat vector index with a fixed dimension.
type Index struct {
	dim     int
	vectors [][]float32
}

// Result is one search hit: the insertion position of the matched vector and
// its squared Euclidean distance to the query.
type Result struct {
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
}

// New creates an empty flat index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dimension returns the vector dimension of the index.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Size returns the number of vectors in the index.
func (idx *Index) Size() int {
	return len(idx.vectors)
}

// Add bulk-appends vectors, preserving their order. Adding an empty batch is
// a no-op. Returns an error if any vector does not match the index dimension.
func (idx *Index) Add(vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) != idx.dim {
			return fmt.Errorf("vector %d dimension mismatch: expected %d, got %d", i, idx.dim, len(vec))
		}
	}
	idx.vectors = append(idx.vectors, vectors...)
	return nil
}

// Search returns the k nearest vectors to the query by squared Euclidean
// distance, closest first. k larger than the index size is clamped; an empty
// index yields an empty result. Returns an error if the query dimension does
// not match the index dimension.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", idx.dim, len(query))
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return []Result{}, nil
	}
	if k > len(idx.vectors) {
		k = len(idx.vectors)
	}

	// Max-heap of the k best candidates seen so far; the root is the worst
	// of them and is evicted when a closer vector turns up.
	h := make(resultHeap, 0, k)
	for pos, vec := range idx.vectors {
		dist := SquaredL2(query, vec)
		if len(h) < k {
			heap.Push(&h, Result{Position: pos, Distance: dist})
			continue
		}
		if dist < h[0].Distance {
			h[0] = Result{Position: pos, Distance: dist}
			heap.Fix(&h, 0)
		}
	}

	out := make([]Result, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out, nil
}

type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
