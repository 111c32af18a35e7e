package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/logger"
)

type VectorStoreConfig struct {
	ConnString      string
	Collection      string
	CollectionTable string
	EmbeddingTable  string
	MMRLambda       float64
}

// PGVectorStore reads the collection/embedding tables written by the
// ingestion job.
type PGVectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
	log      *logger.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder types.Embedder) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", mapPgError(err))
	}

	return NewWithPool(pool, config, embedder), nil
}

func NewWithPool(pool *pgxpool.Pool, config VectorStoreConfig, embedder types.Embedder) *PGVectorStore {
	if config.CollectionTable == "" {
		config.CollectionTable = "langchain_pg_collection"
	}
	if config.EmbeddingTable == "" {
		config.EmbeddingTable = "langchain_pg_embedding"
	}
	if config.MMRLambda == 0 {
		config.MMRLambda = 0.5
	}

	return &PGVectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
		log:      logger.New("pgvector"),
	}
}

func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	vector, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := vs.nearest(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(candidates))
	for _, c := range candidates {
		chunks = append(chunks, c.chunk)
	}
	return chunks, nil
}

func (vs *PGVectorStore) MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
	vector, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := vs.nearest(ctx, vector, fetchK)
	if err != nil {
		return nil, err
	}
	vs.log.Debug("reranking candidates", "fetched", len(candidates), "k", k)

	return rerank(vector, candidates, vs.config.MMRLambda, k), nil
}

func (vs *PGVectorStore) nearest(ctx context.Context, vector []float32, limit int) ([]candidate, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(e.document, ''), e.cmetadata, e.embedding
		FROM %s e
		JOIN %s c ON e.collection_id = c.uuid
		WHERE c.name = $1
		ORDER BY e.embedding <=> $2
		LIMIT $3`,
		vs.config.EmbeddingTable, vs.config.CollectionTable)

	rows, err := vs.pool.Query(ctx, query, vs.config.Collection, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", mapPgError(err))
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var (
			content   string
			metadata  map[string]any
			embedding pgvector.Vector
		)
		if err := rows.Scan(&content, &metadata, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		candidates = append(candidates, candidate{
			chunk:  chunkFromMetadata(content, metadata),
			vector: embedding.Slice(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", mapPgError(err))
	}

	return candidates, nil
}

// Pool exposes the underlying pool, mainly for fixtures.
func (vs *PGVectorStore) Pool() *pgxpool.Pool {
	return vs.pool
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// mapPgError tags credential failures with types.ErrUnauthorized.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
		}
	}
	return err
}
