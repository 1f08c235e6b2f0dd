package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
)

// VectorCache persists embedding vectors across pipeline runs, keyed by
// model and content hash. Implementations must tolerate concurrent access.
type VectorCache interface {
	Get(ctx context.Context, model string, hash string) ([]float32, bool, error)
	Put(ctx context.Context, model string, hash string, text string, embedding []float32) error
}

// CachedEmbedder wraps an EmbeddingClient with an in-memory cache and an
// optional persistent VectorCache. Within one batch every distinct text is
// embedded at most once; with a persistent cache attached, reruns over the
// same corpus skip the provider entirely.
//
// Cache failures degrade to a provider call and are logged, never returned.
type CachedEmbedder struct {
	client  EmbeddingClient
	model   string
	persist VectorCache

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewCachedEmbedder creates a CachedEmbedder over the given provider.
// persist may be nil, in which case only the in-memory cache is used.
func NewCachedEmbedder(client EmbeddingClient, model string, persist VectorCache) *CachedEmbedder {
	return &CachedEmbedder{
		client:  client,
		model:   model,
		persist: persist,
		mem:     make(map[string][]float32),
	}
}

// GenerateEmbedding returns the embedding for input, serving repeated
// inputs from cache.
func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	hash := hashInput(input)

	e.mu.RLock()
	if vec, ok := e.mem[hash]; ok {
		e.mu.RUnlock()
		return vec, nil
	}
	e.mu.RUnlock()

	if e.persist != nil {
		vec, ok, err := e.persist.Get(ctx, e.model, hash)
		if err != nil {
			logger.Warn("[Embed] Vector cache read failed", "err", err)
		} else if ok {
			e.remember(hash, vec)
			return vec, nil
		}
	}

	vec, err := e.client.GenerateEmbedding(ctx, input)
	if err != nil {
		return nil, err
	}

	e.remember(hash, vec)

	if e.persist != nil {
		if err := e.persist.Put(ctx, e.model, hash, string(input), vec); err != nil {
			logger.Warn("[Embed] Vector cache write failed", "err", err)
		}
	}

	return vec, nil
}

// GetMetrics returns the underlying provider's accumulated metrics.
func (e *CachedEmbedder) GetMetrics() ModelMetrics {
	return e.client.GetMetrics()
}

// ResetMetrics resets the underlying provider's accumulated metrics.
func (e *CachedEmbedder) ResetMetrics() {
	e.client.ResetMetrics()
}

func (e *CachedEmbedder) remember(hash string, vec []float32) {
	e.mu.Lock()
	e.mem[hash] = vec
	e.mu.Unlock()
}

func hashInput(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
