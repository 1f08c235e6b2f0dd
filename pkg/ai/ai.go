package ai

import (
	"context"
)

// ModelMetrics contains performance metrics from embedding operations.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// EmbeddingClient defines the interface for embedding providers used by the
// similarity engine. Implementations must be deterministic for identical
// input text, since similarity scores have to be reproducible across runs.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)

	GetMetrics() ModelMetrics
	ResetMetrics()
}

// EmbeddingBatcher is an optional fast path for providers that support
// embedding multiple inputs in a single request.
type EmbeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}
