package store

import (
	"encoding/json"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/handbook/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestChunkFromMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		source   string
		page     *int
	}{
		{name: "json number decoded as float", metadata: map[string]any{"source": "Benefits Guide", "page": float64(4)}, source: "Benefits Guide", page: intPtr(4)},
		{name: "string page", metadata: map[string]any{"source": "Handbook", "page": "12"}, source: "Handbook", page: intPtr(12)},
		{name: "json.Number", metadata: map[string]any{"page": json.Number("7")}, page: intPtr(7)},
		{name: "fractional page", metadata: map[string]any{"source": "Handbook", "page": 1.5}, source: "Handbook"},
		{name: "missing page", metadata: map[string]any{"source": "Handbook"}, source: "Handbook"},
		{name: "no metadata"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := chunkFromMetadata("text", tt.metadata)
			assert.Equal(t, "text", chunk.Content)
			assert.Equal(t, tt.source, chunk.Source)
			assert.Equal(t, tt.page, chunk.Page)
		})
	}
}

func TestChunkFromPayload(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"page_content": {Kind: &qdrant.Value_StringValue{StringValue: "Dental is covered at 80%."}},
		"metadata": {Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: map[string]*qdrant.Value{
			"source": {Kind: &qdrant.Value_StringValue{StringValue: "Benefits Guide"}},
			"page":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: 3}},
		}}}},
	}

	chunk := chunkFromPayload(payload)
	assert.Equal(t, "Dental is covered at 80%.", chunk.Content)
	assert.Equal(t, "Benefits Guide", chunk.Source)
	require.NotNil(t, chunk.Page)
	assert.Equal(t, 3, *chunk.Page)

	empty := chunkFromPayload(map[string]*qdrant.Value{})
	assert.Empty(t, empty.Content)
	assert.Nil(t, empty.Page)
}

func TestErrorMapping(t *testing.T) {
	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: "28P01"}), types.ErrUnauthorized)
	assert.NotErrorIs(t, mapPgError(&pgconn.PgError{Code: "42P01"}), types.ErrUnauthorized)

	assert.ErrorIs(t, mapGrpcError(status.Error(codes.Unauthenticated, "bad api key")), types.ErrUnauthorized)
	assert.NotErrorIs(t, mapGrpcError(status.Error(codes.Unavailable, "down")), types.ErrUnauthorized)
}

func intPtr(v int) *int { return &v }
