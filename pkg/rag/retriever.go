package rag

import (
	"context"
	"errors"
	"strings"

	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/logger"
	"github.com/xhad/handbook/pkg/metrics"
)

const DefaultFetchKFloor = 12

type Retriever struct {
	store       types.ChunkStore
	fetchKFloor int
	log         *logger.Logger
}

func NewRetriever(store types.ChunkStore, fetchKFloor int) *Retriever {
	if fetchKFloor <= 0 {
		fetchKFloor = DefaultFetchKFloor
	}
	return &Retriever{
		store:       store,
		fetchKFloor: fetchKFloor,
		log:         logger.New("retriever"),
	}
}

// Retrieve runs a diversity search and falls back to plain similarity search
// when the diversity search fails for a recoverable reason. The result is
// filtered and de-duplicated; an empty result is ErrNoContext.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Chunk, error) {
	fetchK := max(r.fetchKFloor, topK)

	chunks, err := r.store.MaxMarginalRelevanceSearch(ctx, query, topK, fetchK)
	if err != nil {
		if !recoverable(ctx, err) {
			return nil, err
		}
		r.log.Warn("diversity search failed, using similarity search", "error", err)
		metrics.CaptureRetrievalFallback()

		chunks, err = r.store.SimilaritySearch(ctx, query, topK)
		if err != nil {
			return nil, err
		}
	}

	chunks = dedupe(chunks)
	if len(chunks) == 0 {
		return nil, ErrNoContext
	}
	return chunks, nil
}

// recoverable is false for cancellation and rejected credentials; a second
// search would fail the same way.
func recoverable(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, types.ErrUnauthorized):
		return false
	}
	return true
}

// dedupe drops blank chunks and keeps the first chunk per (source, page).
func dedupe(chunks []models.Chunk) []models.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
