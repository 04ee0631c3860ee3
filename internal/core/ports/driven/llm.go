// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides raw text completion from a language model provider.
// Retries, timeouts and cost accounting live in the core, not in adapters.
//
// Implementations include:
//   - Anthropic (Claude)
//   - OpenAI (GPT-4o)
//   - Ollama (local models)
type LLMService interface {
	// Complete sends a single system + user prompt and returns the completion.
	// Non-success HTTP responses are returned as *domain.ProviderError.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the provider identifier (e.g. "anthropic").
	Provider() string

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest configures a single completion call.
type CompletionRequest struct {
	// System is the system instruction. May be empty.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// Completion is the provider response to a CompletionRequest.
type Completion struct {
	Text string

	// InputTokens and OutputTokens are the usage reported by the provider.
	InputTokens  int
	OutputTokens int

	// Model is the model that served the call, as reported by the provider.
	Model string

	StopReason string
}
