package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
)

type memoryConversation struct {
	conversation models.Conversation
	messages     []models.Message
}

func (c *memoryConversation) lastActivity() time.Time {
	if n := len(c.messages); n > 0 {
		return c.messages[n-1].CreatedAt
	}
	return c.conversation.CreatedAt
}

// MemoryStore keeps conversations in process memory. Nothing survives a
// restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*memoryConversation
	now           clock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]*memoryConversation),
		now:           time.Now,
	}
}

// WithClock replaces the time source; tests use it to pin timestamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Init(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, title string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := uuid.New()
	s.conversations[id] = &memoryConversation{
		conversation: models.Conversation{
			ID:        id,
			Title:     normalizeTitle(title),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, types.ErrConversationNotFound
	}
	return c.conversation, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]models.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		summaries = append(summaries, models.ConversationSummary{
			ID:           c.conversation.ID,
			Title:        c.conversation.Title,
			LastActivity: c.lastActivity(),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries, nil
}

func (s *MemoryStore) Rename(ctx context.Context, id uuid.UUID, title string) error {
	title, err := checkRename(title)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return types.ErrConversationNotFound
	}
	c.conversation.Title = title
	c.conversation.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return types.ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}

func (s *MemoryStore) GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return []models.Message{}, nil
	}

	limit = normalizeLimit(limit)
	if limit > len(c.messages) {
		limit = len(c.messages)
	}
	messages := make([]models.Message, limit)
	copy(messages, c.messages[:limit])
	return messages, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string, citations []models.Citation) error {
	if err := checkRole(role); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return types.ErrConversationNotFound
	}
	now := s.now()
	c.messages = append(c.messages, models.Message{
		Role:      role,
		Content:   content,
		Citations: append([]models.Citation(nil), citations...),
		CreatedAt: now,
	})
	c.conversation.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Close() {}
