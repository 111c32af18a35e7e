package store

import (
	"context"
	"fmt"

	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/config"
)

// Open connects the chunk store named by vector_store.backend.
func Open(ctx context.Context, cfg *config.Config, embedder types.Embedder) (types.ChunkStore, error) {
	switch cfg.VectorStore.Backend {
	case "pgvector":
		vs, err := NewWithConfig(ctx, VectorStoreConfig{
			ConnString:      cfg.Database.URL,
			Collection:      cfg.Database.Collection,
			CollectionTable: cfg.Database.CollectionTable,
			EmbeddingTable:  cfg.Database.EmbeddingTable,
			MMRLambda:       cfg.Retrieval.MMRLambda,
		}, embedder)
		if err != nil {
			return nil, err
		}
		return vs, nil
	case "qdrant":
		qs, err := NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.QdrantHost,
			Port:       cfg.VectorStore.QdrantPort,
			APIKey:     cfg.VectorStore.QdrantAPIKey,
			UseTLS:     cfg.VectorStore.QdrantUseTLS,
			Collection: cfg.VectorStore.QdrantCollection,
			MMRLambda:  cfg.Retrieval.MMRLambda,
		}, embedder)
		if err != nil {
			return nil, err
		}
		return qs, nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", cfg.VectorStore.Backend)
	}
}
