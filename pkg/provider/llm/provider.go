// Package llm defines the Provider interface for generative language model
// backends.
//
// A provider wraps a remote or local model API (e.g., Google Gemini, OpenAI
// GPT-4o, or a local Ollama instance) and exposes a uniform completion
// interface so the coaching and analysis layers never couple to a specific
// SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is a single turn in a model conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the textual content of the message.
	Content string
}

// Usage holds token accounting information returned by the model backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers without a dedicated system slot prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is the full model reply for a [CompletionRequest].
type CompletionResponse struct {
	// Content is the text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any generative model backend.
//
// Complete must return an error when the request fails or ctx is cancelled
// before the completion arrives; it must never return a nil response with a
// nil error.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns a short identifier for the backing provider (e.g.
	// "gemini", "openai"). Used in logs and metrics.
	Name() string
}
