// Package llm wraps the Genkit model surface behind a small Generator
// interface so the agent packages can be tested without a live model.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// Generator produces a single text completion for a system/prompt pair.
// The planner, router and reflector all speak through this interface.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Init initializes Genkit with the Google AI plugin.
// The GEMINI_API_KEY environment variable must be set before calling.
func Init(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit with googleai plugin")
	}
	return g, nil
}

// NewEmbedder returns the Google AI embedder for the given model.
func NewEmbedder(g *genkit.Genkit, model string) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, model)
}

// Client is the Genkit-backed Generator used in production.
type Client struct {
	g      *genkit.Genkit
	model  string
	logger *slog.Logger
}

// NewClient creates a Generator bound to a model name (e.g. "gemini-2.5-flash").
func NewClient(g *genkit.Genkit, model string, logger *slog.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{g: g, model: model, logger: logger}, nil
}

// Generate runs one non-streaming model call and returns the response text.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName("googleai/" + c.model),
		ai.WithPrompt(prompt),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}

	response, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	return response.Text(), nil
}
