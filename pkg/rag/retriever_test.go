package rag_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/rag"
)

func keys(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Key()
	}
	return out
}

func TestRetrieveDeduplicatesBySourceAndPage(t *testing.T) {
	store := &MockChunkStore{OnMMRSearch: returning(
		chunk("A", 1, "first A1"),
		chunk("B", 2, "B2"),
		chunk("A", 1, "second A1 with different text"),
		chunk("C", 3, "C3"),
	)}

	chunks, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"A#1", "B#2", "C#3"}, keys(chunks))
	assert.Equal(t, "first A1", chunks[0].Content)
}

func TestRetrieveDropsBlankContent(t *testing.T) {
	store := &MockChunkStore{OnMMRSearch: returning(
		chunk("A", 1, "   "),
		chunk("B", 2, "B2"),
	)}

	chunks, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"B#2"}, keys(chunks))
}

func TestRetrieveBlankChunkDoesNotClaimKey(t *testing.T) {
	store := &MockChunkStore{OnMMRSearch: returning(
		chunk("A", 1, "\n"),
		chunk("A", 1, "real text"),
	)}

	chunks, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", 6)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "real text", chunks[0].Content)
}

func TestRetrieveFetchK(t *testing.T) {
	tests := []struct {
		topK   int
		fetchK int
	}{
		{topK: 1, fetchK: 12},
		{topK: 6, fetchK: 12},
		{topK: 12, fetchK: 12},
		{topK: 20, fetchK: 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("top_k=%d", tt.topK), func(t *testing.T) {
			store := &MockChunkStore{OnMMRSearch: returning(chunk("A", 1, "x"))}
			_, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", tt.topK)
			require.NoError(t, err)
			assert.Equal(t, tt.topK, store.LastK)
			assert.Equal(t, tt.fetchK, store.LastFetchK)
		})
	}
}

func TestRetrieveFallsBackToSimilarity(t *testing.T) {
	store := &MockChunkStore{
		OnMMRSearch: func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
			return nil, errors.New("operator does not exist: vector <=> vector")
		},
		OnSimilaritySearch: func(ctx context.Context, query string, k int) ([]models.Chunk, error) {
			return []models.Chunk{chunk("Handbook", 4, "PTO accrues monthly.")}, nil
		},
	}

	chunks, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "pto", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, store.SimilarityCalls)
	assert.Equal(t, 4, store.LastK)
	assert.Equal(t, []string{"Handbook#4"}, keys(chunks))
}

func TestRetrieveDoesNotFallBackOnFatalErrors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
	}{
		{name: "unauthorized", ctx: context.Background(), err: fmt.Errorf("query: %w", types.ErrUnauthorized)},
		{name: "deadline", ctx: context.Background(), err: context.DeadlineExceeded},
		{name: "canceled context", ctx: canceled, err: errors.New("conn closed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockChunkStore{OnMMRSearch: func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
				return nil, tt.err
			}}

			_, err := rag.NewRetriever(store, 0).Retrieve(tt.ctx, "q", 6)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, store.SimilarityCalls)
		})
	}
}

func TestRetrieveFallbackFailure(t *testing.T) {
	boom := errors.New("connection reset")
	store := &MockChunkStore{
		OnMMRSearch: func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
			return nil, errors.New("mmr unsupported")
		},
		OnSimilaritySearch: func(ctx context.Context, query string, k int) ([]models.Chunk, error) {
			return nil, boom
		},
	}

	_, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", 6)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveNoContext(t *testing.T) {
	store := &MockChunkStore{OnMMRSearch: returning(chunk("A", 1, " "))}

	_, err := rag.NewRetriever(store, 0).Retrieve(context.Background(), "q", 6)
	assert.ErrorIs(t, err, rag.ErrNoContext)
}
