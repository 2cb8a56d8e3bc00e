package mlclient

import (
	"context"
	"fmt"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// Generator implements weaver.Generator (and any other single-prompt
// text-generation caller) against a local Ollama model via any-llm-go's
// unified provider interface.
type Generator struct {
	backend anyllm.Provider
	model   string
}

// NewGenerator builds a Generator for model, talking to the Ollama server
// any-llm-go's ollama provider defaults to (http://localhost:11434) unless
// opts override it.
func NewGenerator(model string, opts ...anyllm.Option) (*Generator, error) {
	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ml client: creating ollama backend: %w", err)
	}
	return &Generator{backend: backend, model: model}, nil
}

// Generate runs prompt as a single user-role message and returns the
// model's text response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.backend.Completion(ctx, anyllm.CompletionParams{
		Model: g.model,
		Messages: []anyllm.Message{
			{Role: anyllm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ml client: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ml client: generate: empty response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}
