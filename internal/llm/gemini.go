package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGemini creates a Gemini API client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, timeout: timeout}, nil
}

// Complete sends prompt as a single user turn.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, gen GenerationConfig) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	temp := float32(gen.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(gen.MaxTokens),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, gen.Model, contents, cfg)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	return geminiText(res)
}

// geminiText returns the first candidate's text verbatim, empty included.
// A response with no candidates is ErrEmptyResponse.
func geminiText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Text(), nil
}
