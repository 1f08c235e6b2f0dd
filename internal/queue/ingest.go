package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/separk-1/incident-regulation-mapping/internal/records"
	"github.com/separk-1/incident-regulation-mapping/internal/storage"
	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/graph"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

// ProcessIngestMessage handles one ingestion job: it fetches every record
// document under the job's prefix, preloads the clause table when one is
// named, and ingests the corpus. With ChainLink set, a linking job for the
// same prefix is published afterwards.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	graphClient *graph.GraphClient,
	storeClient store.GraphStorage,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(IngestJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	logger.Info("[Queue] Ingest job received",
		"correlation_id", data.CorrelationID,
		"prefix", data.RecordPrefix)

	recs, err := loadRecordsFromS3(ctx, s3Client, data.RecordPrefix)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		logger.Warn("[Queue] No records found under prefix", "correlation_id", data.CorrelationID, "prefix", data.RecordPrefix)
		return nil
	}

	var clauses common.ClauseTable
	if data.ClauseKey != "" {
		raw, err := storage.GetFile(ctx, s3Client, data.ClauseKey)
		if err != nil {
			return fmt.Errorf("failed to fetch clause table %s: %w", data.ClauseKey, err)
		}
		clauses, err = graph.LoadClauseTable(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		if err := graphClient.PreloadClauses(ctx, clauses, storeClient); err != nil {
			return err
		}
	}

	summary, err := graphClient.IngestBatch(ctx, recs, clauses, storeClient)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Ingest job completed",
		"correlation_id", data.CorrelationID,
		"ingested", summary.Ingested,
		"skipped", len(summary.Skipped))

	if !data.ChainLink {
		return nil
	}

	linkMsg := LinkJobMsg{
		Message:       "Link incidents after ingestion",
		CorrelationID: data.CorrelationID,
		RecordPrefix:  data.RecordPrefix,
	}
	msgBytes, err := json.Marshal(linkMsg)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, LinkQueue, msgBytes)
}

// loadRecordsFromS3 fetches and decodes every .json object under prefix.
// Undecodable documents are logged and skipped.
func loadRecordsFromS3(
	ctx context.Context,
	s3Client *awss3.Client,
	prefix string,
) ([]*common.IncidentRecord, error) {
	keys, err := storage.ListFilesWithPrefix(ctx, s3Client, prefix)
	if err != nil {
		return nil, err
	}

	recs := make([]*common.IncidentRecord, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}

		raw, err := storage.GetFile(ctx, s3Client, key)
		if err != nil {
			return nil, err
		}

		record, err := records.Decode(raw, key)
		if err != nil {
			logger.Warn("[Queue] Skipping undecodable record", "key", key, "err", err)
			continue
		}
		recs = append(recs, record)
	}

	return recs, nil
}
