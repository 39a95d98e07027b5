// Package advisor turns project data into prompts, calls the language model
// and shapes its replies for the HTTP layer.
package advisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/llm"
	"github.com/ashureev/pm-advisor/internal/prompt"
	"github.com/ashureev/pm-advisor/internal/store"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// DocumentFetcher downloads a document and reduces it to prompt text.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// TaskSource reads task data from the primary backend.
type TaskSource interface {
	Configured() bool
	TaskFileContent(ctx context.Context, taskID int64) string
	InitialAssignments(ctx context.Context, taskID int64) string
	WeeklyGoals(ctx context.Context, taskID int64, weekNo int) string
}

// Metrics receives advisor-level counters.
type Metrics interface {
	GoalRecovered(ctx context.Context, stage string)
	MessageAppended(ctx context.Context, sender domain.SenderType)
}

type noopMetrics struct{}

func (noopMetrics) GoalRecovered(context.Context, string)              {}
func (noopMetrics) MessageAppended(context.Context, domain.SenderType) {}

// Deps are the collaborators of a Service. LLM, Store and Documents are required.
type Deps struct {
	LLM       llm.Completer
	Profiles  llm.Profiles
	Store     store.ConversationRepository
	Documents DocumentFetcher
	Tasks     TaskSource
	Exchanges ExchangeLogger
	Metrics   Metrics
	Logger    *slog.Logger
}

// Service implements every advice operation.
type Service struct {
	llm       llm.Completer
	profiles  llm.Profiles
	store     store.ConversationRepository
	docs      DocumentFetcher
	tasks     TaskSource
	exchanges ExchangeLogger
	metrics   Metrics
	logger    *slog.Logger
}

// New creates a Service from deps, filling optional collaborators with no-ops.
func New(deps Deps) *Service {
	s := &Service{
		llm:       deps.LLM,
		profiles:  deps.Profiles,
		store:     deps.Store,
		docs:      deps.Documents,
		tasks:     deps.Tasks,
		exchanges: deps.Exchanges,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if s.exchanges == nil {
		s.exchanges = noopExchangeLogger{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// exchangeScope carries identifiers copied into exchange log events.
type exchangeScope struct {
	TaskID    int64
	GroupID   int64
	StudentID int64
	WeekNo    int
}

// complete renders the prompt for kind, calls the model and logs the exchange.
func (s *Service) complete(ctx context.Context, kind prompt.Kind, gen llm.GenerationConfig, data any, scope exchangeScope) (string, error) {
	text, err := prompt.Render(kind, data)
	if err != nil {
		return "", err
	}
	gen.Purpose = string(kind)

	start := time.Now()
	out, err := s.llm.Complete(ctx, text, gen)

	event := ExchangeEvent{
		Purpose:     gen.Purpose,
		Model:       gen.Model,
		RequestID:   chiMiddleware.GetReqID(ctx),
		TaskID:      scope.TaskID,
		GroupID:     scope.GroupID,
		StudentID:   scope.StudentID,
		WeekNo:      scope.WeekNo,
		PromptChars: len(text),
		Response:    out,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.exchanges.Log(event)
	return out, err
}

// preview cuts s to at most 200 runes for log lines.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= 200 {
		return s
	}
	return string(r[:200]) + "..."
}
