package queue

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
)

// IngestJobMsg requests ingestion of all record documents under an S3
// prefix. ClauseKey optionally names the regulation clause CSV to preload
// and resolve citations against. When ChainLink is set, a LinkJobMsg for
// the same corpus is published after ingestion completes.
type IngestJobMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	RecordPrefix  string `json:"record_prefix"`
	ClauseKey     string `json:"clause_key"`
	ChainLink     bool   `json:"chain_link"`
}

// LinkJobMsg requests similarity linking over all record documents under
// an S3 prefix. ReportKey optionally names the destination for the run
// summary document.
type LinkJobMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	RecordPrefix  string `json:"record_prefix"`
	ReportKey     string `json:"report_key"`
}

// NewCorrelationID returns a short random ID threading one submission
// through its ingest and link jobs in the logs.
func NewCorrelationID() string {
	id, err := gonanoid.New()
	if err != nil {
		logger.Warn("[Queue] Failed to generate correlation ID", "err", err)
		return "unknown"
	}
	return id
}
