package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
)

const (
	indexKey  = "handbook:conversations"
	keyPrefix = "handbook:conversation:"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps one hash per conversation, one list of JSON messages per
// conversation and a sorted set of ids scored by last activity.
type RedisStore struct {
	client *redis.Client
	now    clock
}

func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  config.Addr,
		Password:              config.Password,
		DB:                    config.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis is offline: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// WithClock replaces the time source; tests use it to pin timestamps.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func conversationKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func messagesKey(id uuid.UUID) string {
	return keyPrefix + id.String() + ":messages"
}

func (s *RedisStore) Init(ctx context.Context) error {
	return nil
}

func (s *RedisStore) Create(ctx context.Context, title string) (uuid.UUID, error) {
	id := uuid.New()
	now := s.now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, conversationKey(id),
			"title", normalizeTitle(title),
			"created_at", stamp,
			"updated_at", stamp,
			"last_activity", stamp,
		)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMicro()), Member: id.String()})
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	fields, err := s.client.HGetAll(ctx, conversationKey(id)).Result()
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to get conversation: %w", err)
	}
	if len(fields) == 0 {
		return models.Conversation{}, types.ErrConversationNotFound
	}

	c := models.Conversation{ID: id, Title: fields["title"]}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return c, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, raw := range ids {
		cmds[i] = pipe.HGetAll(ctx, keyPrefix+raw)
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
	}

	summaries := []models.ConversationSummary{}
	for i, raw := range ids {
		fields := cmds[i].Val()
		id, err := uuid.Parse(raw)
		if err != nil || len(fields) == 0 {
			continue
		}
		summary := models.ConversationSummary{ID: id, Title: fields["title"]}
		summary.LastActivity, _ = time.Parse(time.RFC3339Nano, fields["last_activity"])
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *RedisStore) Rename(ctx context.Context, id uuid.UUID, title string) error {
	title, err := checkRename(title)
	if err != nil {
		return err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, conversationKey(id), "title", title, "updated_at", stamp).Err(); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, conversationKey(id))
		pipe.Del(ctx, messagesKey(id))
		pipe.ZRem(ctx, indexKey, id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if deleted.Val() == 0 {
		return types.ErrConversationNotFound
	}
	return nil
}

func (s *RedisStore) GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error) {
	raw, err := s.client.LRange(ctx, messagesKey(id), 0, int64(normalizeLimit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string, citations []models.Citation) error {
	if err := checkRole(role); err != nil {
		return err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}

	now := s.now().UTC()
	payload, err := json.Marshal(models.Message{
		Role:      role,
		Content:   content,
		Citations: citations,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	stamp := now.Format(time.RFC3339Nano)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, messagesKey(id), payload)
		pipe.HSet(ctx, conversationKey(id), "updated_at", stamp, "last_activity", stamp)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMicro()), Member: id.String()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *RedisStore) mustExist(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Exists(ctx, conversationKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to look up conversation: %w", err)
	}
	if n == 0 {
		return types.ErrConversationNotFound
	}
	return nil
}

func (s *RedisStore) Close() {
	s.client.Close()
}
