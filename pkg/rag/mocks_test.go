package rag_test

import (
	"context"
	"sync"

	"github.com/xhad/handbook/internal/models"
)

// MockModel implements types.ChatModel. Replies are handed out in call
// order; OnComplete overrides them when set.
type MockModel struct {
	mu         sync.Mutex
	Replies    []string
	OnComplete func(ctx context.Context, messages []models.ChatMessage) (string, error)
	Calls      [][]models.ChatMessage
}

func (m *MockModel) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, messages)
	n := len(m.Calls)
	m.mu.Unlock()

	if m.OnComplete != nil {
		return m.OnComplete(ctx, messages)
	}
	if n <= len(m.Replies) {
		return m.Replies[n-1], nil
	}
	return "default answer [1]", nil
}

// UserPrompt returns the user content of the i-th call.
func (m *MockModel) UserPrompt(i int) string {
	for _, msg := range m.Calls[i] {
		if msg.Role == models.RoleUser {
			return msg.Content
		}
	}
	return ""
}

// MockChunkStore implements types.ChunkStore.
type MockChunkStore struct {
	OnSimilaritySearch func(ctx context.Context, query string, k int) ([]models.Chunk, error)
	OnMMRSearch        func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error)

	SimilarityCalls int
	MMRCalls        int
	LastQuery       string
	LastK           int
	LastFetchK      int
}

func (m *MockChunkStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	m.SimilarityCalls++
	m.LastQuery, m.LastK = query, k
	if m.OnSimilaritySearch != nil {
		return m.OnSimilaritySearch(ctx, query, k)
	}
	return nil, nil
}

func (m *MockChunkStore) MaxMarginalRelevanceSearch(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
	m.MMRCalls++
	m.LastQuery, m.LastK, m.LastFetchK = query, k, fetchK
	if m.OnMMRSearch != nil {
		return m.OnMMRSearch(ctx, query, k, fetchK)
	}
	return nil, nil
}

func (m *MockChunkStore) Close() {}

func chunk(source string, page int, content string) models.Chunk {
	return models.Chunk{Content: content, Source: source, Page: models.IntPtr(page)}
}

func returning(chunks ...models.Chunk) func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
	return func(ctx context.Context, query string, k, fetchK int) ([]models.Chunk, error) {
		return chunks, nil
	}
}

func history(n int) []models.HistoryEntry {
	entries := make([]models.HistoryEntry, n)
	for i := range entries {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		entries[i] = models.HistoryEntry{Role: role, Content: turnText(i + 1)}
	}
	return entries
}

func turnText(i int) string {
	return "turn-" + string(rune('A'+i-1))
}
