// Package llm invokes text-generation providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/pm-advisor/internal/config"
)

// GenerationConfig selects the model and sampling parameters for one call.
// Purpose labels the call for observers and does not reach the provider.
type GenerationConfig struct {
	Purpose     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer sends a single prompt and returns the model's text verbatim.
type Completer interface {
	Complete(ctx context.Context, prompt string, gen GenerationConfig) (string, error)
}

// Profiles holds the two generation profiles used by the service.
type Profiles struct {
	// Advice drives the task-assignment endpoints.
	Advice GenerationConfig
	// Agent drives weekly analysis, weekly goals and chat.
	Agent GenerationConfig
}

// ProfilesFromConfig builds generation profiles from configuration.
func ProfilesFromConfig(cfg config.LLMConfig) Profiles {
	return Profiles{
		Advice: GenerationConfig{Model: cfg.AdviceModel, Temperature: cfg.Temperature},
		Agent:  GenerationConfig{Model: cfg.AgentModel, Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

// New constructs the provider selected by cfg.Provider, wrapped so every call
// is reported to observer.
func New(ctx context.Context, cfg config.LLMConfig, observer Observer) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "openai":
		c = NewOpenAI(cfg.OpenAIAPIKey, cfg.BaseURL, cfg.Timeout)
	case "gemini":
		c, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.Timeout)
	case "mock":
		c = NewMock()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Observe(c, cfg.Provider, observer), nil
}

// observed reports every call of the wrapped Completer.
type observed struct {
	next     Completer
	provider string
	observer Observer
}

// Observe wraps c so that each call emits a CallEvent to observer.
func Observe(c Completer, provider string, observer Observer) Completer {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &observed{next: c, provider: provider, observer: observer}
}

func (o *observed) Complete(ctx context.Context, prompt string, gen GenerationConfig) (string, error) {
	start := time.Now()
	text, err := o.next.Complete(ctx, prompt, gen)
	o.observer.OnCallComplete(CallEvent{
		Purpose:       gen.Purpose,
		Provider:      o.provider,
		Model:         gen.Model,
		Latency:       time.Since(start),
		PromptChars:   len(prompt),
		ResponseChars: len(text),
		Success:       err == nil,
		ErrorCode:     errorCode(err),
	})
	return text, err
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider_error"
	}
}
