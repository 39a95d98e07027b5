package advisor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/google/uuid"
)

// ExchangeEvent is one prompt/response pair sent to the language model.
type ExchangeEvent struct {
	EventID     string `json:"event_id"`
	Timestamp   string `json:"timestamp"`
	Purpose     string `json:"purpose"`
	Model       string `json:"model"`
	RequestID   string `json:"request_id,omitempty"`
	TaskID      int64  `json:"task_id,omitempty"`
	GroupID     int64  `json:"group_id,omitempty"`
	StudentID   int64  `json:"student_id,omitempty"`
	WeekNo      int    `json:"week_no,omitempty"`
	PromptChars int    `json:"prompt_chars"`
	Response    string `json:"response,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// ExchangeLogger records LLM exchanges for later review.
type ExchangeLogger interface {
	Log(event ExchangeEvent)
	Close() error
}

type noopExchangeLogger struct{}

func (noopExchangeLogger) Log(ExchangeEvent) {}
func (noopExchangeLogger) Close() error      { return nil }

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// fileExchangeLogger appends events as NDJSON, one file per purpose.
// A single goroutine owns the files; Log never blocks the caller.
type fileExchangeLogger struct {
	dir    string
	logger *slog.Logger
	queue  chan ExchangeEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewExchangeLogger starts a file-backed logger, or returns a no-op logger
// when cfg.Enabled is false.
func NewExchangeLogger(cfg config.ExchangeLogConfig, logger *slog.Logger) (ExchangeLogger, error) {
	if !cfg.Enabled {
		return noopExchangeLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create exchange log directory: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	l := &fileExchangeLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan ExchangeEvent, queueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues event. Events are dropped with a warning when the queue is full
// or the logger is closed.
func (l *fileExchangeLogger) Log(event ExchangeEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("exchange log queue full, dropping event", "purpose", event.Purpose, "event_id", event.EventID)
	}
}

// Close drains pending events and closes all files.
func (l *fileExchangeLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileExchangeLogger) run() {
	defer close(l.done)

	files := make(map[string]*os.File)
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for event := range l.queue {
		name := unsafeFileChars.ReplaceAllString(event.Purpose, "_")
		if name == "" {
			name = "unknown"
		}
		f, ok := files[name]
		if !ok {
			var err error
			f, err = os.OpenFile(filepath.Join(l.dir, name+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				l.logger.Warn("failed to open exchange log", "purpose", event.Purpose, "error", err)
				continue
			}
			files[name] = f
		}

		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to encode exchange event", "event_id", event.EventID, "error", err)
			continue
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			l.logger.Warn("failed to write exchange event", "event_id", event.EventID, "error", err)
		}
	}
}
