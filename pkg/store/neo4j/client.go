package neo4j

import (
	"context"
	"fmt"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
)

// Client wraps a Neo4j driver together with the database name it targets.
// A Client should be created with NewClient and released with Close.
type Client struct {
	Driver   neo4jdrv.DriverWithContext
	Database string
}

// NewClientParams contains the connection settings for a Neo4j server.
type NewClientParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewClient connects to Neo4j and verifies connectivity before returning.
func NewClient(ctx context.Context, params NewClientParams) (*Client, error) {
	driver, err := neo4jdrv.NewDriverWithContext(
		params.URI,
		neo4jdrv.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", params.URI, err)
	}

	return &Client{
		Driver:   driver,
		Database: params.Database,
	}, nil
}

// Close releases the underlying driver and all its connections.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	return c.Driver.Close(ctx)
}

// initSchema creates uniqueness constraints for the node identities the
// ingestion engine relies on. Failures are logged and ignored, matching
// upsert-by-key semantics that hold without the constraints as long as
// ingestion stays single-writer per key.
func (c *Client) initSchema(ctx context.Context, session neo4jdrv.SessionWithContext) {
	stmts := []string{
		`CREATE CONSTRAINT incident_filename_unique IF NOT EXISTS FOR (i:Incident) REQUIRE i.filename IS UNIQUE`,
		`CREATE CONSTRAINT cfr_citation_unique IF NOT EXISTS FOR (c:CFR) REQUIRE c.cfr IS UNIQUE`,
		`CREATE CONSTRAINT task_description_unique IF NOT EXISTS FOR (t:Task) REQUIRE t.description IS UNIQUE`,
		`CREATE CONSTRAINT event_description_unique IF NOT EXISTS FOR (e:Event) REQUIRE e.description IS UNIQUE`,
		`CREATE CONSTRAINT cause_description_unique IF NOT EXISTS FOR (c:Cause) REQUIRE c.description IS UNIQUE`,
		`CREATE CONSTRAINT influence_description_unique IF NOT EXISTS FOR (i:Influence) REQUIRE i.description IS UNIQUE`,
		`CREATE CONSTRAINT corrective_description_unique IF NOT EXISTS FOR (c:CorrectiveActions) REQUIRE c.description IS UNIQUE`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			logger.Warn("[Store] Schema init failed (continuing)", "err", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}
