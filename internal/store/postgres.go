package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements ConversationRepository on PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	locks  keyLocks
	now    func() time.Time
	logger *slog.Logger
}

// NewPostgres opens a connection pool and creates the conversations table.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS conversations (
		group_id BIGINT NOT NULL,
		task_id BIGINT NOT NULL,
		messages_json TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, task_id)
	)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) load(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT messages_json FROM conversations WHERE group_id = $1 AND task_id = $2`,
		key.GroupID, key.TaskID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.ConversationMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	messages, ok := decodeMessages([]byte(raw))
	if !ok {
		s.logger.Warn("stored conversation corrupt, treating as empty", "conversation_id", key.ID())
	}
	return messages, nil
}

// AddMessage appends a message and rewrites the stored history.
func (s *PostgresStore) AddMessage(ctx context.Context, key domain.ConversationKey, sender domain.SenderType, content string, senderID *int64) (*domain.ConversationMessage, error) {
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

	_, err = s.pool.Exec(ctx, `
	INSERT INTO conversations (group_id, task_id, messages_json, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (group_id, task_id) DO UPDATE SET
		messages_json = EXCLUDED.messages_json,
		updated_at = EXCLUDED.updated_at`,
		key.GroupID, key.TaskID, string(data), now,
	)
	if err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	return &msg, nil
}

// History returns the stored messages in append order.
func (s *PostgresStore) History(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	unlock := s.locks.lock(key)
	defer unlock()
	return s.load(ctx, key)
}

// Clear deletes the conversation row.
func (s *PostgresStore) Clear(ctx context.Context, key domain.ConversationKey) error {
	unlock := s.locks.lock(key)
	defer unlock()

	if _, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE group_id = $1 AND task_id = $2`, key.GroupID, key.TaskID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

// Summary derives counts from the stored messages.
func (s *PostgresStore) Summary(ctx context.Context, key domain.ConversationKey) (domain.ConversationSummary, error) {
	messages, err := s.History(ctx, key)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	return domain.Summarize(key, messages), nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
