package openai

import (
	"sync"

	"raven/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// EncoderClient implements the ai.TextEncoder interface against any
// OpenAI-compatible embeddings endpoint.
//
// An EncoderClient should be created using NewEncoderClient.
type EncoderClient struct {
	embeddingModel string
	timeoutMin     int

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	EmbeddingClient openai.Client
}

// NewEncoderClientParams contains configuration options for creating a new EncoderClient.
type NewEncoderClientParams struct {
	EmbeddingModel string

	EmbeddingURL string
	EmbeddingKey string

	// TimeoutMin bounds each embed request, in minutes. Defaults to 5.
	TimeoutMin int

	MaxConcurrentRequests int64
}

// NewEncoderClient creates a new OpenAI-backed text encoder with the
// specified configuration.
func NewEncoderClient(params NewEncoderClientParams) *EncoderClient {
	opts := []option.RequestOption{}
	if params.EmbeddingURL != "" {
		opts = append(opts, option.WithBaseURL(params.EmbeddingURL))
	}
	if params.EmbeddingKey != "" {
		opts = append(opts, option.WithAPIKey(params.EmbeddingKey))
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}

	return &EncoderClient{
		embeddingModel: params.EmbeddingModel,
		timeoutMin:     timeoutMin,

		embeddingLock: semaphore.NewWeighted(maxConcurrent),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		EmbeddingClient: openai.NewClient(opts...),
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *EncoderClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *EncoderClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *EncoderClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}
