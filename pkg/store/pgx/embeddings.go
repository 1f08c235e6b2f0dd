package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/separk-1/incident-regulation-mapping/internal/util"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// VectorCacheStorage implements ai.VectorCache on PostgreSQL with pgvector.
// Embeddings are keyed by (model, content hash), so a corpus re-run with the
// same embedding model never re-embeds unchanged attribute text.
type VectorCacheStorage struct {
	conn pgxIConn
}

// NewVectorCacheStorage wraps a pgx connection pool. The schema is managed
// by RunMigrations.
func NewVectorCacheStorage(conn pgxIConn) *VectorCacheStorage {
	return &VectorCacheStorage{conn: conn}
}

// Get returns the cached embedding for (model, hash), if present.
func (s *VectorCacheStorage) Get(ctx context.Context, model string, hash string) ([]float32, bool, error) {
	var embedding pgvector.Vector
	err := s.conn.QueryRow(ctx,
		`SELECT embedding FROM embedding_cache WHERE model = $1 AND text_hash = $2`,
		model, hash,
	).Scan(&embedding)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	return embedding.Slice(), true, nil
}

// Put stores an embedding for (model, hash). Concurrent writers racing on
// the same key keep the first row; embeddings are deterministic per model,
// so the stored vector is the same either way.
func (s *VectorCacheStorage) Put(ctx context.Context, model string, hash string, text string, embedding []float32) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO embedding_cache (model, text_hash, content, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (model, text_hash) DO NOTHING`,
		model, hash, util.SanitizePostgresText(text), pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}
