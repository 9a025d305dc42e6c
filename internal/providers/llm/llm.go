package llm

import "context"

type Provider interface {
	// Generate returns the full model response for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
