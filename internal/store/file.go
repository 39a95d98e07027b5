package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/pm-advisor/internal/domain"
)

// FileStore keeps one JSON file per conversation.
//
// Appends within this process are serialized per key. Separate processes
// sharing the directory are not coordinated and can lose appends.
type FileStore struct {
	dir    string
	locks  keyLocks
	now    func() time.Time
	logger *slog.Logger
}

// NewFileStore creates the storage directory if needed and returns a FileStore.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now, logger: logger}, nil
}

func (s *FileStore) path(key domain.ConversationKey) string {
	return filepath.Join(s.dir, fmt.Sprintf("conversation_%d_%d.json", key.GroupID, key.TaskID))
}

// load reads a conversation file. Missing, unreadable and corrupt files all
// read as an empty history.
func (s *FileStore) load(key domain.ConversationKey) []domain.ConversationMessage {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.ConversationMessage{}
	}
	if err != nil {
		s.logger.Warn("conversation file unreadable, treating as empty", "path", path, "error", err)
		return []domain.ConversationMessage{}
	}
	messages, ok := decodeMessages(data)
	if !ok {
		s.logger.Warn("conversation file corrupt, treating as empty", "path", path)
	}
	return messages
}

func (s *FileStore) save(key domain.ConversationKey, messages []domain.ConversationMessage) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(messages); err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".conversation-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// AddMessage appends a message to the conversation file.
func (s *FileStore) AddMessage(_ context.Context, key domain.ConversationKey, sender domain.SenderType, content string, senderID *int64) (*domain.ConversationMessage, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	messages := s.load(key)
	msg, err := newMessage(len(messages), sender, content, senderID, s.now())
	if err != nil {
		return nil, err
	}
	messages = append(messages, msg)
	if err := s.save(key, messages); err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns the stored messages in append order.
func (s *FileStore) History(_ context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	unlock := s.locks.lock(key)
	defer unlock()
	return s.load(key), nil
}

// Clear removes the conversation file if it exists.
func (s *FileStore) Clear(_ context.Context, key domain.ConversationKey) error {
	unlock := s.locks.lock(key)
	defer unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

// Summary derives counts from the stored messages.
func (s *FileStore) Summary(ctx context.Context, key domain.ConversationKey) (domain.ConversationSummary, error) {
	messages, err := s.History(ctx, key)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	return domain.Summarize(key, messages), nil
}

// Ping checks that the storage directory is still accessible.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat conversation directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("conversation path %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
