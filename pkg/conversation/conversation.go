// Package conversation persists chat sessions and their messages. Four
// backends share one contract: PostgreSQL (default), Redis, a SQLite file and
// an in-process map used by tests.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/config"
)

const (
	DefaultTitle = "New chat"
	DefaultLimit = 50
)

// Open builds the backend named by conversations.backend and creates its
// schema.
func Open(ctx context.Context, cfg *config.Config) (types.ConversationStore, error) {
	var (
		store types.ConversationStore
		err   error
	)
	switch cfg.Conversations.Backend {
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.Database.URL)
	case "redis":
		store, err = NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.Conversations.RedisAddr,
			Password: cfg.Conversations.RedisPassword,
			DB:       cfg.Conversations.RedisDB,
		})
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Conversations.SQLitePath)
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported conversation backend %q", cfg.Conversations.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	return title
}

func checkRename(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", types.ErrInvalidTitle
	}
	return title, nil
}

func checkRole(role models.Role) error {
	if !role.Conversational() {
		return fmt.Errorf("%w: %q", types.ErrInvalidRole, role)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

type clock func() time.Time
