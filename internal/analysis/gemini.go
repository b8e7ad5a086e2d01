package analysis

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrMissingKey is returned when no API key is available.
var ErrMissingKey = errors.New("analysis: missing Gemini API key")

// Gemini summarizes with the Gemini API.
type Gemini struct {
	APIKey string
	Model  string
}

var _ Summarizer = (*Gemini)(nil)

// Summarize sends prompt as a single-turn request and returns the reply text.
func (g *Gemini) Summarize(ctx context.Context, prompt string) (string, error) {
	if g.APIKey == "" {
		return "", ErrMissingKey
	}
	model := g.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("creating genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.4)),
	}
	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return result.Text(), nil
}
