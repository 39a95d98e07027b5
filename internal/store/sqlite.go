package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements ConversationRepository using SQLite.
// Each conversation is one row holding the JSON-encoded message array.
type SQLiteStore struct {
	db     *sql.DB
	locks  keyLocks
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		group_id INTEGER NOT NULL,
		task_id INTEGER NOT NULL,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (group_id, task_id)
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// load reads the stored history. Missing rows and corrupt JSON read as empty.
func (s *SQLiteStore) load(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM conversations WHERE group_id = ? AND task_id = ?`,
		key.GroupID, key.TaskID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.ConversationMessage{}, nil
	}
	if err != nil {
		return nil, s.wrap("load conversation", err)
	}
	messages, ok := decodeMessages([]byte(raw))
	if !ok {
		s.logger.Warn("stored conversation corrupt, treating as empty", "conversation_id", key.ID())
	}
	return messages, nil
}

// AddMessage appends a message and rewrites the stored history.
func (s *SQLiteStore) AddMessage(ctx context.Context, key domain.ConversationKey, sender domain.SenderType, content string, senderID *int64) (*domain.ConversationMessage, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	messages, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	now := s.now()
	msg, err := newMessage(len(messages), sender, content, senderID, now)
	if err != nil {
		return nil, err
	}
	data, err := encodeMessages(append(messages, msg))
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO conversations (group_id, task_id, messages_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(group_id, task_id) DO UPDATE SET
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key.GroupID, key.TaskID, string(data), now.Unix(), now.Unix()); err != nil {
		return nil, s.wrap("save conversation", err)
	}
	return &msg, nil
}

// History returns the stored messages in append order.
func (s *SQLiteStore) History(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	unlock := s.locks.lock(key)
	defer unlock()
	return s.load(ctx, key)
}

// Clear deletes the conversation row.
func (s *SQLiteStore) Clear(ctx context.Context, key domain.ConversationKey) error {
	unlock := s.locks.lock(key)
	defer unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE group_id = ? AND task_id = ?`, key.GroupID, key.TaskID)
	if err != nil {
		return s.wrap("clear conversation", err)
	}
	return nil
}

// Summary derives counts from the stored messages.
func (s *SQLiteStore) Summary(ctx context.Context, key domain.ConversationKey) (domain.ConversationSummary, error) {
	messages, err := s.History(ctx, key)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	return domain.Summarize(key, messages), nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) wrap(op string, err error) error {
	if shared.IsSQLiteConflictError(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrBusy, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
