package graph

import (
	"fmt"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
)

// GraphClient builds the incident graph and links incidents by attribute
// similarity. It holds the attribute-category configuration, similarity
// weights, the gating category and threshold, and pair parallelism.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	categories []common.Category
	gating     common.Category
	weights    map[common.Category]float64
	threshold  float64

	parallelPairs int
	maxRetries    int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// Categories is the attribute set to ingest; variant extractions (e.g. the
// HSI-issue set) configure a different list here. GatingCategory is the
// attribute whose similarity decides whether a similarity edge is created.
// Weights maps categories to their share of the aggregate score; the
// engine does not renormalize, callers own that invariant.
type NewGraphClientParams struct {
	Categories     []common.Category
	GatingCategory common.Category
	Weights        map[common.Category]float64
	Threshold      float64

	ParallelPairs int
	MaxRetries    int
}

// DefaultWeights returns the standard aggregate-similarity weights.
func DefaultWeights() map[common.Category]float64 {
	return map[common.Category]float64{
		common.CategoryTask:      0.4,
		common.CategoryCause:     0.3,
		common.CategoryEvent:     0.2,
		common.CategoryInfluence: 0.1,
	}
}

// DefaultThreshold is the minimum gating-attribute similarity for a
// similarity edge. The gate is inclusive: a score of exactly the
// threshold creates an edge.
const DefaultThreshold = 0.8

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters. Zero-valued parameters fall back to the
// standard category set, Task gating, DefaultWeights and DefaultThreshold.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Threshold:     0.8,
//		ParallelPairs: 4,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	categories := params.Categories
	if len(categories) == 0 {
		categories = common.DefaultCategories
	}
	for _, cat := range categories {
		if _, ok := cat.Label(); !ok {
			return nil, fmt.Errorf("unknown attribute category %q", cat)
		}
	}

	gating := params.GatingCategory
	if gating == "" {
		gating = common.CategoryTask
	}
	if !containsCategory(categories, gating) {
		return nil, fmt.Errorf("gating category %q is not in the configured category set", gating)
	}

	weights := params.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	for cat, w := range weights {
		if _, ok := cat.Label(); !ok {
			return nil, fmt.Errorf("unknown weight category %q", cat)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f for category %q", w, cat)
		}
	}

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	parallelPairs := params.ParallelPairs
	if parallelPairs <= 0 {
		parallelPairs = 1
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &GraphClient{
		categories: categories,
		gating:     gating,
		weights:    weights,
		threshold:  threshold,

		parallelPairs: parallelPairs,
		maxRetries:    maxRetries,
	}, nil
}

func containsCategory(categories []common.Category, cat common.Category) bool {
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}
