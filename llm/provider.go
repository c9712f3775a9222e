// Package llm defines the model-call collaborator contract consumed by the
// reasoning loop: a streaming chat provider, its configuration surface, and
// the prompt token budget helper. Concrete providers live under providers/.
package llm

import (
	"context"
	"time"

	"github.com/BaSui01/reagent/types"
)

// CompletionParams carries the sampling parameters declared by the caller.
// Stop is the declared stop-sequence list; the loop may append its own
// markers before invocation.
type CompletionParams struct {
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature float32  `json:"temperature,omitempty" yaml:"temperature"`
	TopP        float32  `json:"top_p,omitempty" yaml:"top_p"`
	Stop        []string `json:"stop,omitempty" yaml:"stop"`
}

// ModelConfig describes the model to drive the loop with.
//
// SupportsObservationStop is a capability flag: providers that reject the
// reserved "Observation" stop sequence set it to false and the loop will
// not inject the marker. It replaces a hard-coded provider denylist so new
// providers need no core changes.
type ModelConfig struct {
	Provider                string           `json:"provider" yaml:"provider"`
	Model                   string           `json:"model" yaml:"model"`
	ContextWindow           int              `json:"context_window,omitempty" yaml:"context_window"`
	SupportsObservationStop bool             `json:"supports_observation_stop" yaml:"supports_observation_stop"`
	Params                  CompletionParams `json:"completion_params" yaml:"completion_params"`
}

// ChatRequest is one streaming chat invocation.
type ChatRequest struct {
	Model       string             `json:"model"`
	Messages    []types.Message    `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	TopP        float32            `json:"top_p,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	Timeout     time.Duration      `json:"timeout,omitempty"`
}

// StreamChunk is one event of a streaming response. Delta carries
// incremental text; a terminal chunk may carry Usage. Err aborts the
// stream and is treated like a call error by the loop.
type StreamChunk struct {
	Delta        string            `json:"delta,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Usage        *types.TokenUsage `json:"usage,omitempty"`
	Err          *types.Error      `json:"error,omitempty"`
}

// Provider is the unified streaming LLM adapter interface. It must honor
// the request's stop sequences. Errors are not caught by the loop: a
// failed call aborts the whole invocation.
type Provider interface {
	// Stream starts a streaming chat request and returns the chunk channel.
	// The channel is closed when the stream ends.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// Name returns the provider's unique identifier.
	Name() string
}
