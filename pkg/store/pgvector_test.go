package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/handbook/pkg/store"
)

type staticEmbedder struct {
	vector []float32
}

func (e staticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector, nil
}

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: connString,
		Collection: "test_handbook",
	}
}

func seed(t *testing.T, ctx context.Context, s *store.PGVectorStore) {
	t.Helper()
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS langchain_pg_collection (uuid UUID PRIMARY KEY, name VARCHAR, cmetadata JSON)`,
		`CREATE TABLE IF NOT EXISTS langchain_pg_embedding (id VARCHAR PRIMARY KEY, collection_id UUID REFERENCES langchain_pg_collection(uuid) ON DELETE CASCADE, embedding vector, document VARCHAR, cmetadata JSONB)`,
		`DELETE FROM langchain_pg_embedding WHERE id IN ('c1', 'c2', 'c3')`,
		`DELETE FROM langchain_pg_collection WHERE name = 'test_handbook'`,
		`INSERT INTO langchain_pg_collection (uuid, name) VALUES ('6a0f3c1e-8b5d-4a8e-9a57-2f1d3c4b5a60', 'test_handbook')`,
		`INSERT INTO langchain_pg_embedding (id, collection_id, embedding, document, cmetadata) VALUES
			('c1', '6a0f3c1e-8b5d-4a8e-9a57-2f1d3c4b5a60', '[1,0,0]', 'PTO accrues monthly.', '{"source": "Handbook", "page": 2}'),
			('c2', '6a0f3c1e-8b5d-4a8e-9a57-2f1d3c4b5a60', '[1,-0.02,0]', 'PTO accrues each month.', '{"source": "Handbook", "page": 3}'),
			('c3', '6a0f3c1e-8b5d-4a8e-9a57-2f1d3c4b5a60', '[0.6,0.8,0]', 'Dental is covered at 80%.', '{"source": "Benefits Guide", "page": 7}')`,
	}
	for _, stmt := range statements {
		_, err := s.Pool().Exec(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestPGVectorStore(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	s, err := store.NewWithConfig(ctx, config, staticEmbedder{vector: []float32{1, 0.1, 0}})
	require.NoError(t, err)
	defer s.Close()

	seed(t, ctx, s)

	results, err := s.SimilaritySearch(ctx, "how does PTO accrue", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PTO accrues monthly.", results[0].Content)
	assert.Equal(t, "Handbook", results[0].Source)
	require.NotNil(t, results[0].Page)
	assert.Equal(t, 2, *results[0].Page)

	diverse, err := s.MaxMarginalRelevanceSearch(ctx, "how does PTO accrue", 2, 3)
	require.NoError(t, err)
	require.Len(t, diverse, 2)
	assert.Equal(t, "PTO accrues monthly.", diverse[0].Content)
	assert.Equal(t, "Dental is covered at 80%.", diverse[1].Content)
}
