// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a hosted or local model API (Gemini, OpenAI, a local Ollama
// instance, ...) and gives the chat service one way to run completions without
// coupling it to any SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/carecompanion/pkg/types"
)

// FinishReasonError marks a Chunk that carries a mid-stream failure in Text.
const FinishReasonError = "error"

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is the
	// user turn being answered.
	Messages []types.Message

	// SystemPrompt is sent ahead of the history. Backends without a dedicated
	// system field receive it as a leading "system" message.
	SystemPrompt string

	// Temperature in [0.0, 2.0]. Zero leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Chunk is a fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental content of this chunk.
	Text string

	// FinishReason is set on the final chunk ("stop", "length", ...). It is
	// FinishReasonError when the stream broke after it started.
	FinishReason string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// StreamCompletion sends req to the model and returns a channel of chunks.
	// The returned error is non-nil only for failures that prevent the stream
	// from starting; later failures arrive as a chunk with FinishReasonError.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the whole reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many context tokens messages would consume.
	// The result may overcount but should not undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata for the underlying model.
	Capabilities() types.ModelCapabilities
}

// Collect drains a stream returned by StreamCompletion into a single string.
// A chunk with FinishReasonError ends collection with an error that carries
// the text received so far.
func Collect(ctx context.Context, ch <-chan Chunk) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case c, ok := <-ch:
			if !ok {
				return sb.String(), nil
			}
			if c.FinishReason == FinishReasonError {
				return sb.String(), errors.New("llm: stream: " + c.Text)
			}
			sb.WriteString(c.Text)
		}
	}
}
