package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
	"github.com/separk-1/incident-regulation-mapping/pkg/store/memory"
)

func fullRecord(filename string) *common.IncidentRecord {
	return &common.IncidentRecord{
		Filename: filename,
		Attributes: map[common.Category][]string{
			common.CategoryTask:             {"welding"},
			common.CategoryEvent:            {"fire"},
			common.CategoryCause:            {"fatigue"},
			common.CategoryInfluence:        {"schedule pressure"},
			common.CategoryCorrectiveAction: {"procedure revision"},
		},
		Metadata: common.RecordMetadata{
			Facility:  common.Facility{Name: "Peach Bottom", Unit: "2"},
			EventDate: "2023-05-14",
			Title:     "Fire during maintenance welding",
			Clause:    "10 CFR 50.72, 10 CFR 99.99",
		},
	}
}

func TestIngestBuildsRecordSubgraph(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	clauses := common.ClauseTable{
		"10 CFR 50.72": {CFR: "10 CFR 50.72", Upper: "Immediate notification", Lower: "One hour reports"},
	}

	if err := client.Ingest(ctx, fullRecord("ler-001.json"), clauses, storeClient); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	props, found, err := storeClient.GetNode(ctx, IncidentRef("ler-001.json"))
	if err != nil || !found {
		t.Fatalf("GetNode(incident) = found %v, err %v", found, err)
	}
	if props["title"] != "Fire during maintenance welding" {
		t.Errorf("incident title = %v", props["title"])
	}
	if props["date"] != "2023-05-14" {
		t.Errorf("incident date = %v", props["date"])
	}

	// One attribute node per category, plus incident, facility and clause.
	for _, tc := range []struct {
		label string
		want  int
	}{
		{"Incident", 1},
		{"Task", 1},
		{"Event", 1},
		{"Cause", 1},
		{"Influence", 1},
		{"CorrectiveActions", 1},
		{"Facility", 1},
		{"CFR", 1},
	} {
		n, err := storeClient.CountNodes(ctx, tc.label)
		if err != nil {
			t.Fatalf("CountNodes(%s) error = %v", tc.label, err)
		}
		if n != tc.want {
			t.Errorf("CountNodes(%s) = %d, want %d", tc.label, n, tc.want)
		}
	}

	edges, err := storeClient.OutgoingEdges(ctx, IncidentRef("ler-001.json"), "REGULATED_BY")
	if err != nil {
		t.Fatalf("OutgoingEdges() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("REGULATED_BY edges = %d, want 1 (unknown citation dropped)", len(edges))
	}
	if edges[0].Props["upper"] != "Immediate notification" {
		t.Errorf("clause edge upper = %v", edges[0].Props["upper"])
	}

	occ, err := storeClient.OutgoingEdges(ctx, IncidentRef("ler-001.json"), "OCCURRED_AT")
	if err != nil {
		t.Fatalf("OutgoingEdges() error = %v", err)
	}
	if len(occ) != 1 {
		t.Fatalf("OCCURRED_AT edges = %d, want 1", len(occ))
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	record := fullRecord("ler-001.json")
	for i := 0; i < 2; i++ {
		if err := client.Ingest(ctx, record, nil, storeClient); err != nil {
			t.Fatalf("Ingest() pass %d error = %v", i+1, err)
		}
	}

	n, err := storeClient.CountNodes(ctx, "Task")
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Task nodes after double ingest = %d, want 1", n)
	}
	// Five attribute edges plus the facility edge, no duplicates.
	if got := storeClient.EdgeCount(); got != 6 {
		t.Fatalf("edges after double ingest = %d, want 6", got)
	}
}

func TestIngestSharedAttributeIdentity(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	a := taskRecord("a.json", "Valve Misalignment")
	b := taskRecord("b.json", "Valve Misalignment")
	c := taskRecord("c.json", "valve misalignment")

	for _, r := range []*common.IncidentRecord{a, b, c} {
		if err := client.Ingest(ctx, r, nil, storeClient); err != nil {
			t.Fatalf("Ingest(%s) error = %v", r.Filename, err)
		}
	}

	// Identical descriptions share one node; case variants do not.
	n, err := storeClient.CountNodes(ctx, "Task")
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Task nodes = %d, want 2", n)
	}
}

func TestIngestSkipsFacilityWithoutIdentity(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctx := context.Background()

	if err := client.Ingest(ctx, taskRecord("a.json", "welding"), nil, storeClient); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	n, err := storeClient.CountNodes(ctx, "Facility")
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Facility nodes = %d, want 0 for empty facility metadata", n)
	}
}

func TestIngestRejectsMalformedRecord(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()

	err := client.Ingest(context.Background(), &common.IncidentRecord{Filename: "   "}, nil, storeClient)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("Ingest() error = %v, want ErrMalformedRecord", err)
	}
	if storeClient.EdgeCount() != 0 {
		t.Fatal("malformed record mutated the store")
	}
}

func TestIngestBatchSkipsAndContinues(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{MaxRetries: 1})
	storeClient := memory.NewGraphDBStorage()

	records := []*common.IncidentRecord{
		fullRecord("ler-001.json"),
		{Filename: ""},
		fullRecord("ler-002.json"),
	}

	summary, err := client.IngestBatch(context.Background(), records, nil, storeClient)
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Ingested != 2 {
		t.Errorf("Ingested = %d, want 2", summary.Ingested)
	}
	if len(summary.Skipped) != 1 {
		t.Fatalf("Skipped = %d, want 1", len(summary.Skipped))
	}

	n, err := storeClient.CountNodes(context.Background(), "Incident")
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Incident nodes = %d, want 2", n)
	}
}

func TestIngestBatchStopsOnCancellation(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.IngestBatch(cancelled, []*common.IncidentRecord{fullRecord("a.json")}, nil, storeClient)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("IngestBatch() error = %v, want context.Canceled", err)
	}
}

func TestPreloadClauses(t *testing.T) {
	client := mustClient(t, NewGraphClientParams{})
	storeClient := memory.NewGraphDBStorage()
	ctxBg := context.Background()

	clauses := common.ClauseTable{
		"10 CFR 50.72": {CFR: "10 CFR 50.72", Upper: "Immediate notification"},
		"10 CFR 50.73": {CFR: "10 CFR 50.73", Upper: "Licensee event reports"},
	}
	if err := client.PreloadClauses(ctxBg, clauses, storeClient); err != nil {
		t.Fatalf("PreloadClauses() error = %v", err)
	}

	n, err := storeClient.CountNodes(ctxBg, "CFR")
	if err != nil {
		t.Fatalf("CountNodes() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("CFR nodes = %d, want 2", n)
	}

	props, found, err := storeClient.GetNode(ctxBg, ClauseRef("10 CFR 50.72"))
	if err != nil || !found {
		t.Fatalf("GetNode(clause) = found %v, err %v", found, err)
	}
	if props["upper"] != "Immediate notification" {
		t.Errorf("clause upper = %v", props["upper"])
	}
}

var _ store.GraphStorage = (*memory.GraphDBStorage)(nil)
