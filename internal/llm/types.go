// Package llm generates answers from a grounded prompt.
package llm

import "context"

// Defaults for answer generation.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.2
)

// Request is a single completion request.
type Request struct {
	// Prompt is the full user message sent to the model.
	Prompt string

	// Contexts are the retrieved chunk texts the prompt was built from,
	// nearest first. Offline completers answer from these directly.
	Contexts []string

	MaxTokens   int
	Temperature float32
}

// Completer turns a prompt into answer text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	ModelName() string
}
