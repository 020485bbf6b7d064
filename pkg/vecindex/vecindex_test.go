package vecindex

import (
	"math"
	"testing"
)

const epsilon = 1e-6

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < epsilon
}

func TestSearchSelfMatch(t *testing.T) {
	idx := New(3)
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if err := idx.Add(vectors); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// Each stored vector is its own nearest neighbor at distance zero.
	for pos, vec := range vectors {
		results, err := idx.Search(vec, 1)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if results[0].Position != pos {
			t.Fatalf("expected position %d, got %d", pos, results[0].Position)
		}
		if !almostEqual(results[0].Distance, 0) {
			t.Fatalf("expected zero distance, got %f", results[0].Distance)
		}
	}
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx := New(2)
	err := idx.Add([][]float32{
		{10, 0},
		{1, 0},
		{3, 0},
		{2, 0},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	results, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	wantPositions := []int{1, 3, 2}
	wantDistances := []float32{1, 4, 9}
	if len(results) != len(wantPositions) {
		t.Fatalf("expected %d results, got %d", len(wantPositions), len(results))
	}
	for i, r := range results {
		if r.Position != wantPositions[i] {
			t.Fatalf("result %d: expected position %d, got %d", i, wantPositions[i], r.Position)
		}
		if !almostEqual(r.Distance, wantDistances[i]) {
			t.Fatalf("result %d: expected distance %f, got %f", i, wantDistances[i], r.Distance)
		}
	}
}

func TestSearchClampsK(t *testing.T) {
	idx := New(2)
	if err := idx.Add([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(2)
	results, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestDimensionMismatch(t *testing.T) {
	idx := New(3)

	if err := idx.Add([][]float32{{1, 0}}); err == nil {
		t.Fatal("expected error adding short vector, got nil")
	}
	if _, err := idx.Search([]float32{1, 0}, 1); err == nil {
		t.Fatal("expected error searching with short query, got nil")
	}
}

func TestNormalizeL2(t *testing.T) {
	vec := []float32{3, 4}
	NormalizeL2(vec)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > epsilon {
		t.Fatalf("expected unit norm, got %f", norm)
	}
	if !almostEqual(vec[0], 0.6) || !almostEqual(vec[1], 0.8) {
		t.Fatalf("unexpected normalized vector %v", vec)
	}

	// Zero vectors stay zero instead of dividing by zero.
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("expected zero vector untouched, got %v", zero)
	}
}

func TestSquaredL2(t *testing.T) {
	got := SquaredL2([]float32{1, 2, 3}, []float32{4, 6, 3})
	if !almostEqual(got, 25) {
		t.Fatalf("expected 25, got %f", got)
	}
}
