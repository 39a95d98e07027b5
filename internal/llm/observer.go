package llm

import (
	"log/slog"
	"time"
)

// CallEvent records metadata about a single LLM invocation.
type CallEvent struct {
	Purpose       string
	Provider      string
	Model         string
	Latency       time.Duration
	PromptChars   int
	ResponseChars int
	Success       bool
	ErrorCode     string
}

// Observer receives events about LLM calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// LogObserver writes call events as structured log lines.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer that logs events to logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnCallComplete(event CallEvent) {
	attrs := []any{
		"purpose", event.Purpose,
		"provider", event.Provider,
		"model", event.Model,
		"latency_ms", event.Latency.Milliseconds(),
		"prompt_chars", event.PromptChars,
		"response_chars", event.ResponseChars,
	}
	if !event.Success {
		o.logger.Warn("llm call failed", append(attrs, "error_code", event.ErrorCode)...)
		return
	}
	o.logger.Info("llm call", attrs...)
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnCallComplete(event CallEvent) {
	for _, o := range m {
		if o != nil {
			o.OnCallComplete(event)
		}
	}
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
