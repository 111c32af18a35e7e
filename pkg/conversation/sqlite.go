package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xhad/handbook/internal/models"
	"github.com/xhad/handbook/internal/types"
)

// Timestamps are unix nanoseconds so MAX and ORDER BY compare numerically.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT 'New chat',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		citations TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_convo_created ON messages(conversation_id, created_at)`,
}

// SQLiteStore keeps conversations in a single local database file, for
// deployments without PostgreSQL.
type SQLiteStore struct {
	db  *sql.DB
	now clock
}

// NewSQLiteStore opens path (":memory:" for a throwaway database) with
// foreign keys enforced.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	for _, query := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create conversation schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, title string) (uuid.UUID, error) {
	id := uuid.New()
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id.String(), normalizeTitle(title), now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	var createdAt, updatedAt int64
	c := models.Conversation{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT title, created_at, updated_at FROM conversations WHERE id = ?`, id.String()).
		Scan(&c.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, types.ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to get conversation: %w", err)
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	c.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return c, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title,
		       COALESCE(MAX(m.created_at), c.created_at) AS last_activity
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var (
			summary      models.ConversationSummary
			id           string
			lastActivity int64
		)
		if err := rows.Scan(&id, &summary.Title, &lastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if summary.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse conversation id: %w", err)
		}
		summary.LastActivity = time.Unix(0, lastActivity).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) Rename(ctx context.Context, id uuid.UUID, title string) error {
	title, err := checkRename(title)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.now().UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, citations, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, id.String(), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var (
			m         models.Message
			role      string
			citations sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&role, &m.Content, &citations, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = models.Role(role)
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		if citations.Valid && citations.String != "" {
			if err := json.Unmarshal([]byte(citations.String), &m.Citations); err != nil {
				return nil, fmt.Errorf("failed to decode citations: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string, citations []models.Citation) error {
	if err := checkRole(role); err != nil {
		return err
	}

	var encoded sql.NullString
	if citations != nil {
		raw, err := json.Marshal(citations)
		if err != nil {
			return fmt.Errorf("failed to encode citations: %w", err)
		}
		encoded = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id.String())
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, citations, created_at)
		VALUES (?, ?, ?, ?, ?)`, id.String(), string(role), content, encoded, now)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return types.ErrConversationNotFound
	}
	return nil
}
