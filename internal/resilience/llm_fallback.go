package resilience

import (
	"context"

	"github.com/orato-ai/orato/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple LLM backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
type LLMFallback struct {
	group       *FallbackGroup[llm.Provider]
	primaryName string
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group:       NewFallbackGroup(primary, primary.Name(), cfg),
		primaryName: primary.Name(),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(provider llm.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name returns the primary provider's name.
func (f *LLMFallback) Name() string {
	return f.primaryName
}
