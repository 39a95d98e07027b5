package llm

import "errors"

var (
	// ErrUnavailable indicates the provider could not be reached.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("llm request timed out")

	// ErrEmptyResponse indicates the provider returned no completion.
	ErrEmptyResponse = errors.New("llm returned no completion")

	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
)
