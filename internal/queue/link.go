package queue

import (
	"bytes"
	"context"
	"encoding/json"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/separk-1/incident-regulation-mapping/internal/storage"
	"github.com/separk-1/incident-regulation-mapping/pkg/ai"
	"github.com/separk-1/incident-regulation-mapping/pkg/graph"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
)

// linkReport is the run summary document written after a linking job.
type linkReport struct {
	CorrelationID string              `json:"correlation_id"`
	PairsCompared int                 `json:"pairs_compared"`
	EdgesCreated  int                 `json:"edges_created"`
	Skipped       []graph.SkippedPair `json:"skipped,omitempty"`
}

// ProcessLinkMessage handles one linking job: it fetches the record corpus
// under the job's prefix, runs pairwise similarity linking, and publishes
// the outcome. Skipped pairs are reported, not fatal; the job succeeds
// with partial coverage.
func ProcessLinkMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	embedder ai.EmbeddingClient,
	graphClient *graph.GraphClient,
	storeClient store.GraphStorage,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(LinkJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	logger.Info("[Queue] Link job received",
		"correlation_id", data.CorrelationID,
		"prefix", data.RecordPrefix)

	recs, err := loadRecordsFromS3(ctx, s3Client, data.RecordPrefix)
	if err != nil {
		return err
	}

	summary, err := graphClient.LinkIncidents(ctx, recs, embedder, storeClient)
	if err != nil {
		return err
	}

	report := linkReport{
		CorrelationID: data.CorrelationID,
		PairsCompared: summary.PairsCompared,
		EdgesCreated:  summary.EdgesCreated,
		Skipped:       summary.Skipped,
	}
	reportBytes, err := json.Marshal(report)
	if err != nil {
		return err
	}

	if data.ReportKey != "" {
		if err := storage.PutFile(ctx, s3Client, data.ReportKey, "application/json", bytes.NewReader(reportBytes)); err != nil {
			logger.Warn("[Queue] Failed to upload link report", "correlation_id", data.CorrelationID, "key", data.ReportKey, "err", err)
		}
	}

	if err := PublishTopic(ch, "link.completed", reportBytes); err != nil {
		logger.Warn("[Queue] Failed to publish completion event", "correlation_id", data.CorrelationID, "err", err)
	}

	logger.Info("[Queue] Link job completed",
		"correlation_id", data.CorrelationID,
		"pairs_compared", summary.PairsCompared,
		"edges_created", summary.EdgesCreated,
		"skipped", len(summary.Skipped))

	return nil
}
