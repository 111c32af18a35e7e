package types

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/xhad/handbook/internal/models"
)

// ErrUnauthorized marks upstream failures caused by rejected credentials.
// Retrieval never falls back past it.
var ErrUnauthorized = errors.New("upstream rejected credentials")

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("role must be user or assistant")
	ErrInvalidTitle         = errors.New("title must not be empty")
)

// Core interfaces
type ChatModel interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type ChunkStore interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error)
	MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error)
	Close()
}

type ConversationStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, title string) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (models.Conversation, error)
	List(ctx context.Context) ([]models.ConversationSummary, error)
	Rename(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error)
	AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string, citations []models.Citation) error
	Close()
}
