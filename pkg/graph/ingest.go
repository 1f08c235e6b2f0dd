package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/separk-1/incident-regulation-mapping/internal/util"
	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

// ErrMalformedRecord marks a record rejected before any graph mutation.
var ErrMalformedRecord = errors.New("incident record is missing its filename key")

// SkippedRecord describes one record left out of a batch run.
type SkippedRecord struct {
	Filename string
	Reason   string
}

// IngestSummary reports the outcome of a batch ingestion run. Skipped
// records are independent and safe to retry; partial graph construction
// is valid and resumable.
type IngestSummary struct {
	Ingested int
	Skipped  []SkippedRecord
}

// Ingest writes one incident record into the graph: the incident node,
// shared attribute nodes with their typed edges, the facility node with
// its occurred-at edge, and regulation edges for clause citations found in
// the lookup table. The whole record is applied as one atomic batch, and
// re-ingesting the same record changes nothing beyond overwriting the
// incident's scalar fields.
func (g *GraphClient) Ingest(
	ctx context.Context,
	record *common.IncidentRecord,
	clauses common.ClauseTable,
	storeClient store.GraphStorage,
) error {
	batch, err := g.buildRecordBatch(record, clauses)
	if err != nil {
		return err
	}
	if err := storeClient.Apply(ctx, batch); err != nil {
		return fmt.Errorf("failed to ingest record %s: %w", record.Filename, err)
	}
	return nil
}

// IngestBatch ingests records in order on a single writer, so upserts of a
// shared attribute key always observe prior upserts of the same key.
// Malformed records are skipped and reported; store failures are retried
// and then reported, never silently dropped. Only context cancellation
// stops the run early.
func (g *GraphClient) IngestBatch(
	ctx context.Context,
	records []*common.IncidentRecord,
	clauses common.ClauseTable,
	storeClient store.GraphStorage,
) (IngestSummary, error) {
	summary := IngestSummary{}

	logger.Info("[Ingest] Processing", "total_records", len(records))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := ""
		if record != nil {
			name = record.Filename
		}

		err := util.RetryErrWithContext(ctx, g.maxRetries, func(rCtx context.Context) error {
			return g.Ingest(rCtx, record, clauses, storeClient)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			logger.Error("[Ingest] Record skipped", "filename", name, "err", err)
			summary.Skipped = append(summary.Skipped, SkippedRecord{Filename: name, Reason: err.Error()})
			continue
		}
		summary.Ingested++
	}

	logger.Info("[Ingest] Completed", "ingested", summary.Ingested, "skipped", len(summary.Skipped))

	return summary, nil
}

// PreloadClauses upserts every known regulation clause as a CFR node, so
// the regulation subgraph exists even for clauses no incident cites.
func (g *GraphClient) PreloadClauses(
	ctx context.Context,
	clauses common.ClauseTable,
	storeClient store.GraphStorage,
) error {
	if len(clauses) == 0 {
		return nil
	}

	batch := &store.MutationBatch{}
	for _, clause := range clauses {
		batch.UpsertNode(ClauseRef(clause.CFR), map[string]any{
			"upper": clause.Upper,
			"lower": clause.Lower,
		})
	}
	if err := storeClient.Apply(ctx, batch); err != nil {
		return fmt.Errorf("failed to preload clauses: %w", err)
	}
	return nil
}

func (g *GraphClient) buildRecordBatch(
	record *common.IncidentRecord,
	clauses common.ClauseTable,
) (*store.MutationBatch, error) {
	if record == nil || strings.TrimSpace(record.Filename) == "" {
		return nil, ErrMalformedRecord
	}

	batch := &store.MutationBatch{}
	incidentRef := IncidentRef(record.Filename)

	batch.UpsertNode(incidentRef, map[string]any{
		"title": record.Metadata.Title,
		"date":  record.Metadata.EventDate,
	})

	attrs := Normalize(record, g.categories)
	for _, cat := range g.categories {
		label, _ := cat.Label()
		edgeType, _ := cat.EdgeType()
		for _, description := range attrs[cat] {
			ref := AttributeRef(label, description)
			batch.UpsertNode(ref, nil)
			batch.UpsertEdge(incidentRef, ref, edgeType, nil)
		}
	}

	facility := record.Metadata.Facility
	if facility.Name != "" || facility.Unit != "" {
		ref := FacilityRef(facility.Name, facility.Unit)
		batch.UpsertNode(ref, nil)
		batch.UpsertEdge(incidentRef, ref, edgeOccurredAt, nil)
	}

	for _, clause := range ResolveClauses(record.Metadata.Clause, clauses) {
		ref := ClauseRef(clause.CFR)
		batch.UpsertNode(ref, map[string]any{
			"upper": clause.Upper,
			"lower": clause.Lower,
		})
		batch.UpsertEdge(incidentRef, ref, edgeRegulatedBy, map[string]any{
			"upper": clause.Upper,
			"lower": clause.Lower,
		})
	}

	return batch, nil
}
