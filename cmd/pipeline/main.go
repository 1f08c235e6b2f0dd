package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/separk-1/incident-regulation-mapping/internal/records"
	"github.com/separk-1/incident-regulation-mapping/internal/util"
	"github.com/separk-1/incident-regulation-mapping/pkg/ai"
	oai "github.com/separk-1/incident-regulation-mapping/pkg/ai/ollama"
	gai "github.com/separk-1/incident-regulation-mapping/pkg/ai/openai"
	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/graph"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger/console"
	"github.com/separk-1/incident-regulation-mapping/pkg/store"
	memorystore "github.com/separk-1/incident-regulation-mapping/pkg/store/memory"
	neo4jstore "github.com/separk-1/incident-regulation-mapping/pkg/store/neo4j"
	pgstore "github.com/separk-1/incident-regulation-mapping/pkg/store/pgx"
)

func main() {
	recordsDir := flag.String("records", "", "directory of incident record JSON files")
	clausesPath := flag.String("clauses", "", "regulation clause CSV file")
	storeKind := flag.String("store", "neo4j", "graph store backend: neo4j or memory")
	reset := flag.Bool("reset", false, "wipe the graph before ingesting")
	skipLink := flag.Bool("skip-link", false, "ingest only, skip similarity linking")
	top := flag.String("top", "", "print the strongest similarity links of this incident")
	topK := flag.Int("k", 5, "number of links to print with -top")
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if *recordsDir == "" {
		logger.Fatal("Missing -records directory")
	}

	recs, err := records.LoadDir(*recordsDir)
	if err != nil {
		logger.Fatal("Failed to load records", "err", err)
	}
	if len(recs) == 0 {
		logger.Fatal("No records found", "dir", *recordsDir)
	}

	var clauses common.ClauseTable
	if *clausesPath != "" {
		f, err := os.Open(*clausesPath)
		if err != nil {
			logger.Fatal("Failed to open clause table", "err", err)
		}
		clauses, err = graph.LoadClauseTable(f)
		f.Close()
		if err != nil {
			logger.Fatal("Failed to parse clause table", "err", err)
		}
		logger.Info("Loaded clause table", "clauses", len(clauses))
	}

	storeClient := newStoreClient(ctx, *storeKind)
	defer storeClient.Close(context.Background())

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Threshold:     util.GetEnvFloat("SIMILARITY_THRESHOLD", graph.DefaultThreshold),
		ParallelPairs: int(util.GetEnvNumeric("PARALLEL_PAIRS", 4)),
	})
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	if *reset {
		logger.Info("Resetting graph store")
		if err := storeClient.Reset(ctx); err != nil {
			logger.Fatal("Failed to reset graph store", "err", err)
		}
	}

	if len(clauses) > 0 {
		if err := graphClient.PreloadClauses(ctx, clauses, storeClient); err != nil {
			logger.Fatal("Failed to preload clauses", "err", err)
		}
	}

	ingestSummary, err := graphClient.IngestBatch(ctx, recs, clauses, storeClient)
	if err != nil {
		logger.Fatal("Ingestion aborted", "err", err)
	}
	for _, skipped := range ingestSummary.Skipped {
		logger.Warn("Record skipped", "filename", skipped.Filename, "reason", skipped.Reason)
	}

	if !*skipLink {
		embedder := newEmbedder(ctx)
		linkSummary, err := graphClient.LinkIncidents(ctx, recs, embedder, storeClient)
		if err != nil {
			logger.Fatal("Linking aborted", "err", err)
		}
		for _, skipped := range linkSummary.Skipped {
			logger.Warn("Pair skipped", "from", skipped.From, "to", skipped.To, "reason", skipped.Reason)
		}
	}

	if *top != "" {
		edges, err := graphClient.TopSimilar(ctx, storeClient, *top, *topK)
		if err != nil {
			logger.Fatal("Failed to read similarity links", "err", err)
		}
		for _, edge := range edges {
			logger.Info("Similar incident",
				"to", edge.To,
				"total", edge.Total,
				"task1", edge.TaskFrom,
				"task2", edge.TaskTo)
		}
	}
}

func newStoreClient(ctx context.Context, kind string) store.GraphStorage {
	switch kind {
	case "memory":
		return memorystore.NewGraphDBStorage()
	case "neo4j":
		client, err := neo4jstore.NewClient(ctx, neo4jstore.NewClientParams{
			URI:      util.GetEnv("NEO4J_URI"),
			Username: util.GetEnv("NEO4J_USERNAME"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
		})
		if err != nil {
			logger.Fatal("Unable to connect to neo4j", "err", err)
		}
		return neo4jstore.NewGraphDBStorage(ctx, client)
	default:
		logger.Fatal("Unknown store backend", "store", kind)
		return nil
	}
}

// newEmbedder builds the embedding client from the environment, wrapped in
// the embedding cache. With DATABASE_URL set the cache persists across runs.
func newEmbedder(ctx context.Context) ai.EmbeddingClient {
	adapter := util.GetEnv("AI_ADAPTER")
	embedModel := util.GetEnv("AI_EMBED_MODEL")

	var baseEmbedder ai.EmbeddingClient
	switch adapter {
	case "ollama":
		client, err := oai.NewEmbeddingOllamaClient(oai.NewEmbeddingOllamaClientParams{
			EmbeddingModel: embedModel,

			BaseURL: util.GetEnv("AI_EMBED_URL"),
			ApiKey:  util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		baseEmbedder = client
	default:
		baseEmbedder = gai.NewEmbeddingOpenAIClient(gai.NewEmbeddingOpenAIClientParams{
			EmbeddingModel: embedModel,

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT", 4)),
		})
	}

	var vectorCache ai.VectorCache
	databaseURL := util.GetEnvString("DATABASE_URL", "")
	if databaseURL != "" {
		if err := pgstore.RunMigrations(databaseURL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}

		pgCfg, err := pgxpool.ParseConfig(databaseURL)
		if err != nil {
			logger.Fatal("Invalid DATABASE_URL", "err", err)
		}
		pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		pgConn, err := pgxpool.NewWithConfig(ctx, pgCfg)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}

		vectorCache = pgstore.NewVectorCacheStorage(pgConn)
	}

	return ai.NewCachedEmbedder(baseEmbedder, embedModel, vectorCache)
}
