package store

import (
	"context"
	"fmt"
	"math"

	"github.com/qdrant/go-client/qdrant"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	MMRLambda  float64
}

// QdrantStore reads a collection whose points carry a "page_content" string
// and a "metadata" object, the layout the langchain Qdrant writer produces.
type QdrantStore struct {
	config   QdrantConfig
	client   *qdrant.Client
	embedder types.Embedder
	log      *logger.Logger
}

func NewQdrantStore(config QdrantConfig, embedder types.Embedder) (*QdrantStore, error) {
	if config.MMRLambda == 0 {
		config.MMRLambda = 0.5
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{
		config:   config,
		client:   client,
		embedder: embedder,
		log:      logger.New("qdrant"),
	}, nil
}

func (qs *QdrantStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	vector, err := qs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := qs.nearest(ctx, vector, k, false)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(candidates))
	for _, c := range candidates {
		chunks = append(chunks, c.chunk)
	}
	return chunks, nil
}

func (qs *QdrantStore) MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
	vector, err := qs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := qs.nearest(ctx, vector, fetchK, true)
	if err != nil {
		return nil, err
	}
	qs.log.Debug("reranking candidates", "fetched", len(candidates), "k", k)

	return rerank(vector, candidates, qs.config.MMRLambda, k), nil
}

func (qs *QdrantStore) nearest(ctx context.Context, vector []float32, limit int, withVectors bool) ([]candidate, error) {
	result, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qs.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", mapGrpcError(err))
	}

	candidates := make([]candidate, 0, len(result))
	for _, hit := range result {
		candidates = append(candidates, candidate{
			chunk:  chunkFromPayload(hit.GetPayload()),
			vector: denseVector(hit.GetVectors().GetVector()),
		})
	}
	return candidates, nil
}

func (qs *QdrantStore) Close() {
	if err := qs.client.Close(); err != nil {
		qs.log.Error("could not close qdrant client", "error", err)
	}
}

func chunkFromPayload(payload map[string]*qdrant.Value) models.Chunk {
	chunk := models.Chunk{Content: payload["page_content"].GetStringValue()}

	fields := payload["metadata"].GetStructValue().GetFields()
	chunk.Source = fields["source"].GetStringValue()

	if page, ok := fields["page"]; ok {
		switch kind := page.GetKind().(type) {
		case *qdrant.Value_IntegerValue:
			chunk.Page = models.IntPtr(int(kind.IntegerValue))
		case *qdrant.Value_DoubleValue:
			if kind.DoubleValue == math.Trunc(kind.DoubleValue) {
				chunk.Page = models.IntPtr(int(kind.DoubleValue))
			}
		case *qdrant.Value_StringValue:
			chunk.Page = parsePage(kind.StringValue)
		}
	}
	return chunk
}

func denseVector(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}

func mapGrpcError(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
		}
	}
	return err
}
