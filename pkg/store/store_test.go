package store

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"raven/pkg/ai"
	"raven/pkg/graph"
)

// fakeEncoder resolves labels against a fixed vector table.
type fakeEncoder struct {
	vecs  map[string][]float32
	calls int
}

func (f *fakeEncoder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	out, err := f.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeEncoder) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec, ok := f.vecs[string(in)]
		if !ok {
			return nil, errors.New("no vector for input " + string(in))
		}
		out[i] = append([]float32(nil), vec...)
	}
	return out, nil
}

func (f *fakeEncoder) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }
func (f *fakeEncoder) ResetMetrics()               {}

func testGraph() *graph.Graph {
	g := graph.New()
	g.UpsertNode("T1003", "OS Credential Dumping", graph.NodeKindTechnique)
	g.UpsertNode("S0002", "Mimikatz", graph.NodeKindTool)
	g.UpsertNode("M0001", "Emotet", graph.NodeKindMalware)
	g.UpsertEdge("S0002", "T1003", "uses")
	g.UpsertEdge("M0001", "T1003", "uses")
	return g
}

func testEncoder() *fakeEncoder {
	return &fakeEncoder{vecs: map[string][]float32{
		"OS Credential Dumping": {1, 0, 0},
		"Mimikatz":              {0, 1, 0},
		"Emotet":                {0, 0, 1},
	}}
}

func TestBuildIndexAlignsWithSnapshotOrder(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	ks := NewKnowledgeStore(testGraph(), testEncoder())
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	wantKeys := []string{"T1003", "S0002", "M0001"}
	if got := ks.Snapshot().Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Fatalf("expected snapshot %v, got %v", wantKeys, got)
	}

	// Position i of the index must resolve to the i-th snapshot key.
	for i, key := range wantKeys {
		node, ok := ks.Graph().Node(key)
		if !ok {
			t.Fatalf("expected node %s", key)
		}
		if node.Embedding == nil {
			t.Fatalf("expected embedding written back to %s", key)
		}

		matches, err := ks.SimilarByVector(node.Embedding, 1)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected 1 match, got %d", len(matches))
		}
		if matches[0].Position != i {
			t.Fatalf("expected position %d for %s, got %d", i, key, matches[0].Position)
		}
		if matches[0].Node.Key != key {
			t.Fatalf("expected node %s, got %s", key, matches[0].Node.Key)
		}
		if matches[0].Distance > 1e-6 {
			t.Fatalf("expected zero self distance, got %f", matches[0].Distance)
		}
	}
}

func TestBuildIndexEmptyGraph(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	enc := testEncoder()
	ks := NewKnowledgeStore(graph.New(), enc)
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if enc.calls != 0 {
		t.Fatalf("expected no encoder calls for empty graph, got %d", enc.calls)
	}
	if !ks.IndexReady() {
		t.Fatal("expected index ready after build")
	}
	if ks.Snapshot().Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d", ks.Snapshot().Len())
	}

	matches, err := ks.SimilarByVector([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestBuildIndexNormalizesEmbeddings(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	// Encoder output is deliberately not unit length.
	enc := &fakeEncoder{vecs: map[string][]float32{
		"OS Credential Dumping": {3, 4, 0},
		"Mimikatz":              {0, 2, 0},
		"Emotet":                {0, 0, 5},
	}}

	ks := NewKnowledgeStore(testGraph(), enc)
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	node, _ := ks.Graph().Node("T1003")
	want := []float32{0.6, 0.8, 0}
	for i := range want {
		if math.Abs(float64(node.Embedding[i]-want[i])) > 1e-6 {
			t.Fatalf("expected normalized embedding %v, got %v", want, node.Embedding)
		}
	}

	for _, key := range ks.Snapshot().Keys() {
		node, _ := ks.Graph().Node(key)
		var sum float64
		for _, v := range node.Embedding {
			sum += float64(v) * float64(v)
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
			t.Fatalf("expected unit norm for %s, got %f", key, math.Sqrt(sum))
		}
	}
}

// chunkedFakeEncoder records whether the chunked path was taken.
type chunkedFakeEncoder struct {
	fakeEncoder
	chunkCalls int
	chunkSizes []int
}

func (f *chunkedFakeEncoder) GenerateEmbeddingsChunks(ctx context.Context, chunks [][][]byte) ([][]float32, error) {
	f.chunkCalls++
	out := make([][]float32, 0)
	for _, chunk := range chunks {
		f.chunkSizes = append(f.chunkSizes, len(chunk))
		vecs, err := f.GenerateEmbeddings(ctx, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func TestBuildIndexChunksLargeBatches(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")
	t.Setenv("AI_EMBED_BATCH", "2")

	enc := &chunkedFakeEncoder{fakeEncoder: *testEncoder()}
	ks := NewKnowledgeStore(testGraph(), enc)
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// Three labels over a batch limit of two must go through the chunked path.
	if enc.chunkCalls != 1 {
		t.Fatalf("expected 1 chunked call, got %d", enc.chunkCalls)
	}
	if !reflect.DeepEqual(enc.chunkSizes, []int{2, 1}) {
		t.Fatalf("expected chunk sizes [2 1], got %v", enc.chunkSizes)
	}

	// Chunking must not disturb the snapshot-order alignment.
	wantKeys := []string{"T1003", "S0002", "M0001"}
	if got := ks.Snapshot().Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Fatalf("expected snapshot %v, got %v", wantKeys, got)
	}
	matches, err := ks.SimilarByVector([]float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if matches[0].Node.Key != "M0001" || matches[0].Position != 2 {
		t.Fatalf("expected M0001 at position 2, got %s at %d", matches[0].Node.Key, matches[0].Position)
	}
}

func TestBuildIndexRebuildIsIdempotent(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	ks := NewKnowledgeStore(testGraph(), testEncoder())
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	firstKeys := ks.Snapshot().Keys()

	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error on rebuild, got %v", err)
	}
	if got := ks.Snapshot().Keys(); !reflect.DeepEqual(got, firstKeys) {
		t.Fatalf("expected snapshot %v after rebuild, got %v", firstKeys, got)
	}

	matches, err := ks.SimilarByVector([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if matches[0].Node.Key != "S0002" || matches[0].Position != 1 {
		t.Fatalf("expected S0002 at position 1, got %s at %d", matches[0].Node.Key, matches[0].Position)
	}
}

func TestSimilarBeforeBuildFails(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	ks := NewKnowledgeStore(testGraph(), testEncoder())

	_, err := ks.Similar(context.Background(), "Mimikatz", 1)
	if !errors.Is(err, ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
	_, err = ks.SimilarByVector([]float32{1, 0, 0}, 1)
	if !errors.Is(err, ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestSimilarEncodesQueryText(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	enc := testEncoder()
	enc.vecs["credential theft"] = []float32{0.9, 0.1, 0}

	ks := NewKnowledgeStore(testGraph(), enc)
	if err := ks.BuildIndex(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	matches, err := ks.Similar(context.Background(), "credential theft", 2)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Node.Key != "T1003" {
		t.Fatalf("expected nearest node T1003, got %s", matches[0].Node.Key)
	}
	if matches[1].Distance < matches[0].Distance {
		t.Fatal("expected matches ordered by distance")
	}
}

func TestBuildIndexDimensionMismatch(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "4")

	// Encoder emits 3-wide vectors while the index expects 4.
	ks := NewKnowledgeStore(testGraph(), testEncoder())
	err := ks.BuildIndex(context.Background())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if ks.IndexReady() {
		t.Fatal("expected index not ready after failed build")
	}
}

func TestNeighbors(t *testing.T) {
	ks := NewKnowledgeStore(testGraph(), testEncoder())

	neighbors := ks.Neighbors("T1003")
	if neighbors.Node == nil || neighbors.Node.Label != "OS Credential Dumping" {
		t.Fatalf("unexpected node %+v", neighbors.Node)
	}
	wantPred := []graph.Neighbor{
		{Key: "S0002", Relationship: "uses"},
		{Key: "M0001", Relationship: "uses"},
	}
	if !reflect.DeepEqual(neighbors.Predecessors, wantPred) {
		t.Fatalf("expected predecessors %v, got %v", wantPred, neighbors.Predecessors)
	}
	if len(neighbors.Successors) != 0 {
		t.Fatalf("expected no successors, got %v", neighbors.Successors)
	}

	// Unknown keys answer with empty lists, not an error.
	missing := ks.Neighbors("T9999")
	if missing.Node != nil {
		t.Fatalf("expected nil node, got %+v", missing.Node)
	}
	if len(missing.Successors) != 0 || len(missing.Predecessors) != 0 {
		t.Fatalf("expected empty neighbor lists, got %+v", missing)
	}
}

func TestRestoreIndex(t *testing.T) {
	t.Setenv("AI_EMBED_DIM", "3")

	ks := NewKnowledgeStore(testGraph(), testEncoder())

	keys := []string{"T1003", "S0002", "M0001"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if err := ks.RestoreIndex(keys, vectors); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if !ks.IndexReady() {
		t.Fatal("expected index ready after restore")
	}
	matches, err := ks.SimilarByVector([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if matches[0].Node.Key != "S0002" {
		t.Fatalf("expected S0002, got %s", matches[0].Node.Key)
	}

	node, _ := ks.Graph().Node("M0001")
	if !reflect.DeepEqual(node.Embedding, []float32{0, 0, 1}) {
		t.Fatalf("expected embedding written back, got %v", node.Embedding)
	}

	if err := ks.RestoreIndex(keys, vectors[:2]); err == nil {
		t.Fatal("expected size mismatch error, got nil")
	}
}
