// Package store provides conversation persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/ashureev/pm-advisor/internal/domain"
)

// TimestampLayout is the ISO-8601 layout used for message timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown conversation store backend")

	// ErrInvalidSender is returned when a message has a sender type other than USER or AGENT.
	ErrInvalidSender = errors.New("invalid sender type")

	// ErrBusy wraps storage errors caused by a locked database.
	ErrBusy = errors.New("conversation store busy")
)

// ConversationRepository defines the interface for persisting conversation logs.
//
// Every implementation performs whole-history read-modify-write on append and
// serializes it per conversation key within the process.
type ConversationRepository interface {
	// AddMessage appends a message and returns it with its assigned message_id.
	AddMessage(ctx context.Context, key domain.ConversationKey, sender domain.SenderType, content string, senderID *int64) (*domain.ConversationMessage, error)

	// History returns the full message sequence. Missing or unreadable
	// conversations yield an empty slice, not an error.
	History(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error)

	// Clear deletes the conversation. Clearing a missing conversation is a no-op.
	Clear(ctx context.Context, key domain.ConversationKey) error

	// Summary returns message counts and the last activity timestamp.
	Summary(ctx context.Context, key domain.ConversationKey) (domain.ConversationSummary, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open builds the repository selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ConversationRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir, logger)
	case "sqlite":
		return NewSQLite(cfg.DBPath, logger)
	case "postgres":
		return NewPostgres(ctx, cfg.PostgresDSN(), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// keyLocks hands out one mutex per conversation key. An entry lives only
// while some caller holds or waits on it.
type keyLocks struct {
	mu sync.Mutex
	m  map[domain.ConversationKey]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (l *keyLocks) lock(key domain.ConversationKey) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[domain.ConversationKey]*keyLock)
	}
	kl, ok := l.m[key]
	if !ok {
		kl = &keyLock{}
		l.m[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// newMessage builds the next message for a conversation that already holds
// existing messages. Agent messages never carry a sender id.
func newMessage(existing int, sender domain.SenderType, content string, senderID *int64, now time.Time) (domain.ConversationMessage, error) {
	if !sender.Valid() {
		return domain.ConversationMessage{}, fmt.Errorf("%w: %q", ErrInvalidSender, sender)
	}
	if sender == domain.SenderAgent {
		senderID = nil
	}
	return domain.ConversationMessage{
		MessageID:  existing + 1,
		SenderType: sender,
		SenderID:   senderID,
		Content:    content,
		Timestamp:  now.Format(TimestampLayout),
	}, nil
}

// decodeMessages parses a stored history. ok is false when the data is corrupt.
func decodeMessages(data []byte) (messages []domain.ConversationMessage, ok bool) {
	if err := json.Unmarshal(data, &messages); err != nil {
		return []domain.ConversationMessage{}, false
	}
	if messages == nil {
		messages = []domain.ConversationMessage{}
	}
	return messages, true
}

func encodeMessages(messages []domain.ConversationMessage) ([]byte, error) {
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return data, nil
}
