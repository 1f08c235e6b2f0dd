package graph

import (
	"context"
	"math"
	"testing"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/store/memory"
)

// unitVector returns a 2d unit vector whose cosine against {1,0} is cos.
func unitVector(cos float64) []float32 {
	sin := math.Sqrt(1 - cos*cos)
	return []float32{float32(cos), float32(sin)}
}

func TestLinkIncidentsThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		vector    []float32
		wantEdges int
	}{
		{"above threshold links", unitVector(0.95), 1},
		// {4,3} against {1,0} gives exactly 4/5: the gate is inclusive.
		{"exactly at threshold links", []float32{4, 3}, 1},
		{"just below threshold does not link", unitVector(0.7999), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mustClient(t, NewGraphClientParams{})
			storeClient := memory.NewGraphDBStorage()

			embedder := &stubEmbedder{vectors: map[string][]float32{
				"welding":   {1, 0},
				"machining": tt.vector,
			}}

			records := []*common.IncidentRecord{
				taskRecord("a.json", "welding"),
				taskRecord("b.json", "machining"),
			}

			summary, err := client.LinkIncidents(context.Background(), records, embedder, storeClient)
			if err != nil {
				t.Fatalf("LinkIncidents() error = %v", err)
			}
			if summary.PairsCompared != 1 {
				t.Errorf("PairsCompared = %d, want 1", summary.PairsCompared)
			}
			if summary.EdgesCreated != tt.wantEdges {
				t.Errorf("EdgesCreated = %d, want %d", summary.EdgesCreated, tt.wantEdges)
			}

			edges, err := storeClient.OutgoingEdges(context.Background(), IncidentRef("a.json"), "SIMILAR_TASK")
			if err != nil {
				t.Fatalf("OutgoingEdges() error = %v", err)
			}
			if len(edges) != tt.wantEdges {
				t.Fatalf("stored edges = %d, want %d", len(edges), tt.wantEdges)
			}
		})
	}
}

func TestLinkIncidentsEdgeShape(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	a := &common.IncidentRecord{
		Filename: "a.json",
		Attributes: map[common.Category][]string{
			common.CategoryTask:  {"welding"},
			common.CategoryCause: {"fatigue"},
		},
	}
	b := &common.IncidentRecord{
		Filename: "b.json",
		Attributes: map[common.Category][]string{
			common.CategoryTask:  {"welding"},
			common.CategoryCause: {"fatigue"},
		},
	}

	if _, err := client.LinkIncidents(ctx, []*common.IncidentRecord{a, b}, &stubEmbedder{}, storeClient); err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}

	edges, err := storeClient.OutgoingEdges(ctx, IncidentRef("a.json"), "SIMILAR_TASK")
	if err != nil {
		t.Fatalf("OutgoingEdges() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}

	props := edges[0].Props
	// Task 1.0*0.4 + Cause 1.0*0.3.
	if got := props["total_similarity"].(float64); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("total_similarity = %v, want 0.7", got)
	}
	if props["task_similarity"].(float64) != 1.0 {
		t.Errorf("task_similarity = %v, want 1.0", props["task_similarity"])
	}
	if props["event_similarity"].(float64) != 0.0 {
		t.Errorf("event_similarity = %v, want 0.0", props["event_similarity"])
	}
	if props["task1"] != "welding" || props["task2"] != "welding" {
		t.Errorf("task pair = %v, %v", props["task1"], props["task2"])
	}

	// Edges are directed a->b only; no reverse edge exists.
	reverse, err := storeClient.OutgoingEdges(ctx, IncidentRef("b.json"), "SIMILAR_TASK")
	if err != nil {
		t.Fatalf("OutgoingEdges() error = %v", err)
	}
	if len(reverse) != 0 {
		t.Fatalf("reverse edges = %d, want 0", len(reverse))
	}
}

func TestLinkIncidentsTaskCrossProduct(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()

	records := []*common.IncidentRecord{
		taskRecord("a.json", "welding", "grinding"),
		taskRecord("b.json", "welding", "cutting", "brazing"),
	}

	summary, err := client.LinkIncidents(context.Background(), records, &stubEmbedder{}, storeClient)
	if err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}
	// One edge per task pair: 2 x 3.
	if summary.EdgesCreated != 6 {
		t.Fatalf("EdgesCreated = %d, want 6", summary.EdgesCreated)
	}
}

func TestLinkIncidentsEmptyGatingAttribute(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()

	records := []*common.IncidentRecord{
		taskRecord("a.json", "welding"),
		taskRecord("b.json"), // no tasks: similarity floors at 0.0
	}

	summary, err := client.LinkIncidents(context.Background(), records, &stubEmbedder{}, storeClient)
	if err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}
	if summary.EdgesCreated != 0 {
		t.Fatalf("EdgesCreated = %d, want 0", summary.EdgesCreated)
	}
	if len(summary.Skipped) != 0 {
		t.Fatalf("Skipped = %d, want 0 (empty attribute is a decision, not a failure)", len(summary.Skipped))
	}
}

func TestLinkIncidentsSkipsFailedPair(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()

	embedder := &stubEmbedder{fail: map[string]bool{"machining": true}}

	records := []*common.IncidentRecord{
		taskRecord("a.json", "welding"),
		taskRecord("b.json", "machining"),
		taskRecord("c.json", "welding"),
	}

	summary, err := client.LinkIncidents(context.Background(), records, embedder, storeClient)
	if err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}
	// a-b and b-c fail on machining's embedding, a-c succeeds and links.
	if summary.PairsCompared != 1 {
		t.Errorf("PairsCompared = %d, want 1", summary.PairsCompared)
	}
	if len(summary.Skipped) != 2 {
		t.Errorf("Skipped = %d, want 2", len(summary.Skipped))
	}
	if summary.EdgesCreated != 1 {
		t.Errorf("EdgesCreated = %d, want 1", summary.EdgesCreated)
	}
}

func TestLinkIncidentsNearIdenticalTasks(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	a := &common.IncidentRecord{
		Filename: "a.json",
		Attributes: map[common.Category][]string{
			common.CategoryTask:  {"Reactor Startup"},
			common.CategoryCause: {"Valve Misalignment"},
		},
	}
	b := &common.IncidentRecord{
		Filename: "b.json",
		Attributes: map[common.Category][]string{
			common.CategoryTask:  {"Reactor Startup Procedure"},
			common.CategoryCause: {"Human Error"},
		},
	}

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Reactor Startup":           {1, 0},
		"Reactor Startup Procedure": unitVector(0.9),
		"Valve Misalignment":        {1, 0},
		"Human Error":               unitVector(0.3),
	}}

	summary, err := client.LinkIncidents(ctx, []*common.IncidentRecord{a, b}, embedder, storeClient)
	if err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}
	// High task similarity gates exactly one edge; the low cause score is
	// annotation only and never triggers an edge of its own.
	if summary.EdgesCreated != 1 {
		t.Fatalf("EdgesCreated = %d, want 1", summary.EdgesCreated)
	}

	edges, err := storeClient.OutgoingEdges(ctx, IncidentRef("a.json"), "SIMILAR_TASK")
	if err != nil {
		t.Fatalf("OutgoingEdges() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}
	props := edges[0].Props
	if props["task_similarity"].(float64) < 0.8 {
		t.Errorf("task_similarity = %v, want >= 0.8", props["task_similarity"])
	}
	if props["cause_similarity"].(float64) >= 0.8 {
		t.Errorf("cause_similarity = %v, want annotation below the gate", props["cause_similarity"])
	}
	if props["task1"] != "Reactor Startup" || props["task2"] != "Reactor Startup Procedure" {
		t.Errorf("task pair = %v, %v", props["task1"], props["task2"])
	}
}

func TestTopSimilar(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"welding":           {1, 0},
		"welding oversight": unitVector(0.9),
	}}

	records := []*common.IncidentRecord{
		taskRecord("a.json", "welding"),
		taskRecord("b.json", "welding"),
		taskRecord("c.json", "welding", "oversight"),
	}

	if _, err := client.LinkIncidents(ctx, records, embedder, storeClient); err != nil {
		t.Fatalf("LinkIncidents() error = %v", err)
	}

	top, err := client.TopSimilar(ctx, storeClient, "a.json", 1)
	if err != nil {
		t.Fatalf("TopSimilar() error = %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("TopSimilar() returned %d edges, want 1", len(top))
	}
	if top[0].To != "b.json" {
		t.Fatalf("top match = %s, want b.json", top[0].To)
	}
	if top[0].TaskFrom != "welding" {
		t.Errorf("TaskFrom = %q, want welding", top[0].TaskFrom)
	}
}
