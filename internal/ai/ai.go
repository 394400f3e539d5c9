package ai

import "context"

// Generator produces a single text completion for a system prompt and a user
// message. Implementations wrap a hosted LLM provider.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}
