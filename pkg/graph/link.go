package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/separk-1/incident-regulation-mapping/internal/util"
	"github.com/separk-1/incident-regulation-mapping/pkg/ai"
	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

// SkippedPair describes one incident pair no similarity decision was made
// for. Skipped pairs are safe to retry on a later run.
type SkippedPair struct {
	From   string
	To     string
	Reason string
}

// LinkSummary reports the outcome of a linking run. EdgesCreated counts
// materialized similarity edges, which can exceed the pair count because
// each qualifying task pair yields its own edge.
type LinkSummary struct {
	PairsCompared int
	EdgesCreated  int
	Skipped       []SkippedPair
}

// similarityPropNames maps a category to the edge property its score is
// stored under.
var similarityPropNames = map[common.Category]string{
	common.CategoryTask:             "task_similarity",
	common.CategoryEvent:            "event_similarity",
	common.CategoryCause:            "cause_similarity",
	common.CategoryInfluence:        "influence_similarity",
	common.CategoryCorrectiveAction: "corrective_actions_similarity",
}

// LinkIncidents compares every unordered incident pair and materializes
// similarity edges for pairs whose gating-attribute similarity meets the
// threshold. Each qualifying pair gets one edge per cross product of the
// two incidents' gating attribute values, carrying the full score
// breakdown and the triggering value pair.
//
// Pairs are independent: an embedding or store failure skips that pair and
// the run continues. Cancellation stops scheduling and returns the context
// error; edges already written remain, partial completion is valid.
func (g *GraphClient) LinkIncidents(
	ctx context.Context,
	records []*common.IncidentRecord,
	embedder ai.EmbeddingClient,
	storeClient store.GraphStorage,
) (LinkSummary, error) {
	summary := LinkSummary{}
	var mu sync.Mutex

	logger.Info("[Link] Comparing incident pairs",
		"records", len(records),
		"gating", g.gating,
		"threshold", g.threshold)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.parallelPairs)

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]

			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}

				created, err := g.linkPair(groupCtx, a, b, embedder, storeClient)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					logger.Error("[Link] Pair skipped", "from", a.Filename, "to", b.Filename, "err", err)
					summary.Skipped = append(summary.Skipped, SkippedPair{
						From:   a.Filename,
						To:     b.Filename,
						Reason: err.Error(),
					})
					return nil
				}
				summary.PairsCompared++
				summary.EdgesCreated += created
				return nil
			})
		}
	}

	err := group.Wait()

	logger.Info("[Link] Completed",
		"pairs_compared", summary.PairsCompared,
		"edges_created", summary.EdgesCreated,
		"skipped", len(summary.Skipped))

	return summary, err
}

// linkPair scores one pair and writes its similarity edges, returning the
// number of edges created.
func (g *GraphClient) linkPair(
	ctx context.Context,
	a, b *common.IncidentRecord,
	embedder ai.EmbeddingClient,
	storeClient store.GraphStorage,
) (int, error) {
	breakdown, err := g.AggregateSimilarity(ctx, embedder, a, b)
	if err != nil {
		return 0, err
	}

	if breakdown.PerAttrib[g.gating] < g.threshold {
		return 0, nil
	}

	valuesA := Normalize(a, []common.Category{g.gating})[g.gating]
	valuesB := Normalize(b, []common.Category{g.gating})[g.gating]

	batch := &store.MutationBatch{}
	for _, taskA := range valuesA {
		for _, taskB := range valuesB {
			props := map[string]any{
				"total_similarity": breakdown.Total,
				"task1":            taskA,
				"task2":            taskB,
			}
			for cat, score := range breakdown.PerAttrib {
				if name, ok := similarityPropNames[cat]; ok {
					props[name] = score
				}
			}
			batch.AppendEdge(IncidentRef(a.Filename), IncidentRef(b.Filename), edgeSimilarTask, props)
		}
	}
	if batch.Empty() {
		return 0, nil
	}

	err = util.RetryErrWithContext(ctx, g.maxRetries, func(rCtx context.Context) error {
		return storeClient.Apply(rCtx, batch)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write similarity edges for %s-%s: %w", a.Filename, b.Filename, err)
	}
	return len(batch.EdgeAppends), nil
}

// TopSimilar reads back the strongest similarity links of one incident,
// sorted by total score descending, at most k entries. k <= 0 means all.
func (g *GraphClient) TopSimilar(
	ctx context.Context,
	storeClient store.GraphStorage,
	filename string,
	k int,
) ([]common.SimilarityEdge, error) {
	edges, err := storeClient.OutgoingEdges(ctx, IncidentRef(filename), edgeSimilarTask)
	if err != nil {
		return nil, fmt.Errorf("failed to read similarity edges of %s: %w", filename, err)
	}

	result := make([]common.SimilarityEdge, 0, len(edges))
	for _, edge := range edges {
		se := common.SimilarityEdge{
			From:   filename,
			Scores: map[common.Category]float64{},
		}
		if to, ok := edge.To.Key["filename"].(string); ok {
			se.To = to
		}
		if v, ok := edge.Props["total_similarity"].(float64); ok {
			se.Total = v
		}
		if v, ok := edge.Props["task1"].(string); ok {
			se.TaskFrom = v
		}
		if v, ok := edge.Props["task2"].(string); ok {
			se.TaskTo = v
		}
		for cat, name := range similarityPropNames {
			if v, ok := edge.Props[name].(float64); ok {
				se.Scores[cat] = v
			}
		}
		result = append(result, se)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total > result[j].Total
	})
	if k > 0 && len(result) > k {
		result = result[:k]
	}
	return result, nil
}
