package graph

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/separk-1/incident-regulation-mapping/pkg/ai"
	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

// AttributeSimilarity computes the similarity of two incidents on one
// attribute category: the cosine similarity of the embeddings of each
// side's space-joined, order-preserving description text.
//
// If either side reports nothing for the category the score is 0.0 by
// definition, not an error: two incidents cannot be compared on an
// attribute neither reports. Scores are clipped to [0,1] so floating-point
// drift in the provider never leaks out of contract.
func (g *GraphClient) AttributeSimilarity(
	ctx context.Context,
	embedder ai.EmbeddingClient,
	category common.Category,
	a, b *common.IncidentRecord,
) (float64, error) {
	textA := attributeText(a, category)
	textB := attributeText(b, category)
	if textA == "" || textB == "" {
		return 0.0, nil
	}

	vecA, err := embedder.GenerateEmbedding(ctx, []byte(textA))
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s attributes of %s: %w", category, a.Filename, err)
	}
	vecB, err := embedder.GenerateEmbedding(ctx, []byte(textB))
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s attributes of %s: %w", category, b.Filename, err)
	}

	return clamp01(cosineSimilarity(vecA, vecB)), nil
}

// AggregateSimilarity computes the weighted similarity of two incidents
// across the client's weighted categories, returning the total and the
// per-category breakdown. Categories absent from the weights map
// contribute weight 0. The total is not renormalized when weights do not
// sum to 1.
//
// Self-comparison is undefined input; the linking engine never presents a
// pair with identical identity.
func (g *GraphClient) AggregateSimilarity(
	ctx context.Context,
	embedder ai.EmbeddingClient,
	a, b *common.IncidentRecord,
) (common.SimilarityBreakdown, error) {
	breakdown := common.SimilarityBreakdown{
		PerAttrib: make(map[common.Category]float64, len(g.weights)),
	}

	// Fixed category order keeps float accumulation deterministic.
	for _, cat := range g.categories {
		weight, weighted := g.weights[cat]
		if !weighted && cat != g.gating {
			continue
		}

		sim, err := g.AttributeSimilarity(ctx, embedder, cat, a, b)
		if err != nil {
			return common.SimilarityBreakdown{}, err
		}
		breakdown.PerAttrib[cat] = sim
		breakdown.Total += sim * weight
	}

	return breakdown, nil
}

// attributeText renders one incident's description text for a category:
// normalized values joined by a single space, preserving record order.
func attributeText(record *common.IncidentRecord, category common.Category) string {
	values := Normalize(record, []common.Category{category})[category]
	return strings.Join(values, " ")
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		magA += ai * ai
		magB += bi * bi
	}

	mag := math.Sqrt(magA * magB)
	if mag == 0 {
		return 0.0
	}
	return dot / mag
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
