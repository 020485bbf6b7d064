package ai

import (
	"context"
	"strings"

	"raven/internal/util"
)

// DefaultDimensions is the embedding width assumed when AI_EMBED_DIM is not
// set. 384 matches the MiniLM family of sentence encoders.
const DefaultDimensions = 384

// DefaultBatchSize is the largest batch sent to the model in one request
// when AI_EMBED_BATCH is not set.
const DefaultBatchSize = 128

// EmbeddingDimensions returns the configured embedding width.
func EmbeddingDimensions() int {
	return int(util.GetEnvNumeric("AI_EMBED_DIM", DefaultDimensions))
}

// EmbeddingBatchSize returns the configured per-request batch limit.
func EmbeddingBatchSize() int {
	size := int(util.GetEnvNumeric("AI_EMBED_BATCH", DefaultBatchSize))
	if size <= 0 {
		size = DefaultBatchSize
	}
	return size
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// TextEncoder is the external text-encoding capability consumed by the
// embedding indexer. Implementations are stateless per call: a batch of
// texts yields a batch of fixed-width vectors in the same order.
//
// Encoders are constructed explicitly and passed in wherever embeddings are
// needed; there is no package-level client.
type TextEncoder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)

	GetMetrics() ModelMetrics
	ResetMetrics()
}

// ChunkedTextEncoder is implemented by encoders that can fan a large batch
// out over several concurrent model requests. Results come back flattened in
// input order, so callers can treat the chunked call like one big
// GenerateEmbeddings.
type ChunkedTextEncoder interface {
	GenerateEmbeddingsChunks(ctx context.Context, chunks [][][]byte) ([][]float32, error)
}

// ChunkInputs splits a batch into chunks of at most size inputs, preserving
// order. A size <= 0 yields a single chunk.
func ChunkInputs(inputs [][]byte, size int) [][][]byte {
	if len(inputs) == 0 {
		return nil
	}
	if size <= 0 {
		return [][][]byte{inputs}
	}
	chunks := make([][][]byte, 0, (len(inputs)+size-1)/size)
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		chunks = append(chunks, inputs[start:end])
	}
	return chunks
}

// NormalizeEmbeddingInputs splits a batch into the inputs that need a model
// round trip and the blank ones that short-circuit to a zero vector of the
// configured width. idxMap maps each entry of stringsIn back to its position
// in the out slice.
func NormalizeEmbeddingInputs(inputs [][]byte, dim int) (idxMap []int, stringsIn []string, out [][]float32) {
	idxMap = make([]int, 0, len(inputs))
	stringsIn = make([]string, 0, len(inputs))
	out = make([][]float32, len(inputs))
	for i, in := range inputs {
		text := string(in)
		if len(strings.TrimSpace(text)) == 0 {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		stringsIn = append(stringsIn, TruncateToTokenBudget(text))
	}
	return idxMap, stringsIn, out
}
