package reactor

import (
	"context"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// LLMProvider is the external chat/streaming completion contract (§6.1).
// Concrete adapters (internal/llm) wrap anthropic-sdk-go and go-openai
// behind this interface; the loop depends only on the interface.
type LLMProvider interface {
	// Chat performs one non-streaming completion call.
	Chat(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
	// Stream performs one streaming completion call, delivering chunks on
	// the returned channel. The channel is closed when the call finishes;
	// a terminal chunk with Done=true or a non-nil Err precedes closure.
	Stream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error)
	// Name identifies the provider for logging/metrics/error classification.
	Name() string
}

// CompletionRequest is the provider-agnostic request shape.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []models.Message
	Tools     []ToolSchema
	MaxTokens int
}

// CompletionResult is the non-streaming response.
type CompletionResult struct {
	Content   string
	ToolCalls []models.ToolCall
	Usage     models.TokenUsage
}

// CompletionChunk is one unit of a streamed completion.
type CompletionChunk struct {
	DeltaContent  string
	DeltaToolCall *models.ToolCall
	Usage         *models.TokenUsage
	Done          bool
	Err           error
}

// Tool is a plain (non-agent) tool executor, invoked directly by the
// ToolInvoker with no pooling or multi-turn state.
type Tool interface {
	Name() string
	Schema() ToolSchema
	Execute(ctx context.Context, args map[string]any) (*ToolExecResult, error)
}

// ToolExecResult is the outcome of a plain tool's Execute call.
type ToolExecResult struct {
	Content string
	IsError bool
}

// ToolSchema is the JSON-schema-shaped declaration an LLM sees for one tool
// or Agent-Tool, as defined in §3.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema object: {type, properties, required}
}
